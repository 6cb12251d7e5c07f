package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"reportsigner/internal/apperr"
	"reportsigner/internal/clock"
	"reportsigner/internal/model"
	"reportsigner/internal/qr"
	"reportsigner/internal/render"
	"reportsigner/internal/repository"
	"reportsigner/internal/signer"
	"reportsigner/internal/storage"
	"reportsigner/internal/token"
)

var (
	ErrRequestNil        = errors.New("request is nil")
	ErrSubjectIDRequired = errors.New("subjectId is required")
)

// ReportListResult is the service-level DTO for paginated report records.
type ReportListResult struct {
	Items []model.Report `json:"data"`
	Total int            `json:"total"`
}

// CleanupRunner triggers a retention sweep on demand.
type CleanupRunner interface {
	RunOnce() (model.CleanupStats, error)
}

// ReportService defines the use cases for issuing and serving signed
// verification reports.
type ReportService interface {
	// Generate renders, signs and stores a report for the given request and
	// returns the download coordinates for the stored file.
	Generate(ctx context.Context, req *model.ReportRequest) (*model.GenerationResult, error)

	// Download validates the token against filename and returns the stored
	// file content.
	Download(ctx context.Context, filename, tokenStr string) ([]byte, error)

	// Status reports whether filename exists and, if so, its size and checksum.
	Status(ctx context.Context, filename string) (*model.FileStatus, error)

	// Delete removes a stored report by filename.
	Delete(ctx context.Context, filename string) error

	// Cleanup runs a retention sweep now and returns the resulting usage.
	Cleanup(ctx context.Context) (*model.CleanupStats, error)

	// List returns audit records using limit/offset and a total count.
	// It fails when no audit store is configured.
	List(ctx context.Context, limit, offset int) (*ReportListResult, error)
}

// reportService is a concrete implementation of ReportService.
type reportService struct {
	renderer render.Renderer
	signer   signer.Signer
	qr       qr.Encoder
	store    storage.FileStore
	tokens   token.Codec
	sweeper  CleanupRunner
	repo     repository.ReportRepository // nil when no audit store is configured
	clock    clock.Clock

	downloadBaseURL string
}

// NewReportService constructs a new ReportService. repo may be nil; the
// audit trail is then skipped.
func NewReportService(
	renderer render.Renderer,
	sig signer.Signer,
	enc qr.Encoder,
	store storage.FileStore,
	tokens token.Codec,
	sweeper CleanupRunner,
	repo repository.ReportRepository,
	clk clock.Clock,
	downloadBaseURL string,
) ReportService {
	return &reportService{
		renderer:        renderer,
		signer:          sig,
		qr:              enc,
		store:           store,
		tokens:          tokens,
		sweeper:         sweeper,
		repo:            repo,
		clock:           clk,
		downloadBaseURL: strings.TrimRight(downloadBaseURL, "/"),
	}
}

func (s *reportService) Generate(ctx context.Context, req *model.ReportRequest) (*model.GenerationResult, error) {
	if req == nil {
		return nil, ErrRequestNil
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, ErrSubjectIDRequired
	}

	now := s.clock.Now()
	filename := fmt.Sprintf("report_%s_%s.pdf", sanitizeID(req.SubjectID), now.Format("20060102_150405"))

	tokenStr, expiresAt, err := s.tokens.IssueDownloadToken(filename)
	if err != nil {
		return nil, err
	}
	downloadURL := s.downloadURL(filename, tokenStr)

	qrPNG, err := s.qr.Encode(downloadURL)
	if err != nil {
		return nil, err
	}

	unsigned, err := s.renderer.Render(req, qrPNG, downloadURL, now.Format("02/01/2006"))
	if err != nil {
		return nil, err
	}

	signed, err := s.signer.Sign(unsigned)
	if err != nil {
		return nil, err
	}

	saved, err := s.store.Save(signed, filename)
	if err != nil {
		return nil, err
	}

	// A collision suffix changes the stored name; the token must be bound
	// to the name the file actually lives under. The QR embedded in the
	// document keeps the original URL and stays valid for the first copy.
	if saved.Filename != filename {
		tokenStr, expiresAt, err = s.tokens.IssueDownloadToken(saved.Filename)
		if err != nil {
			return nil, err
		}
		downloadURL = s.downloadURL(saved.Filename, tokenStr)
	}

	checksum := storage.Checksum(signed)
	s.audit(ctx, saved, checksum, now, expiresAt)

	return &model.GenerationResult{
		Success:       true,
		Message:       "report generated",
		Filename:      saved.Filename,
		DownloadURL:   downloadURL,
		DownloadToken: tokenStr,
		QRCode:        base64.StdEncoding.EncodeToString(qrPNG),
		Checksum:      checksum,
		FileSizeBytes: saved.SizeBytes,
		GeneratedAt:   now,
		ExpiresAt:     expiresAt,
	}, nil
}

func (s *reportService) Download(ctx context.Context, filename, tokenStr string) ([]byte, error) {
	if err := s.tokens.ValidateDownload(tokenStr, filename); err != nil {
		return nil, err
	}
	relPath, err := s.store.Locate(filename)
	if err != nil {
		return nil, err
	}
	return s.store.Read(relPath)
}

func (s *reportService) Status(ctx context.Context, filename string) (*model.FileStatus, error) {
	relPath, err := s.store.Locate(filename)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			status := &model.FileStatus{Filename: filename, Exists: false}
			// A swept report is gone from disk but its audit record keeps
			// the issued checksum and size.
			if s.repo != nil {
				if rec, rerr := s.repo.FindByFilename(ctx, filename); rerr == nil && rec != nil {
					status.SizeBytes = rec.SizeBytes
					status.Checksum = rec.Checksum
				}
			}
			return status, nil
		}
		return nil, err
	}

	content, err := s.store.Read(relPath)
	if err != nil {
		return nil, err
	}
	return &model.FileStatus{
		Filename:  filename,
		Exists:    true,
		SizeBytes: int64(len(content)),
		Checksum:  storage.Checksum(content),
	}, nil
}

func (s *reportService) Delete(ctx context.Context, filename string) error {
	relPath, err := s.store.Locate(filename)
	if err != nil {
		return err
	}
	if err := s.store.Delete(relPath); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.DeleteByFilename(ctx, filename); err != nil {
			s.logAuditError("audit_delete_failed", filename, err)
		}
	}
	return nil
}

func (s *reportService) Cleanup(ctx context.Context) (*model.CleanupStats, error) {
	stats, err := s.sweeper.RunOnce()
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *reportService) List(ctx context.Context, limit, offset int) (*ReportListResult, error) {
	if s.repo == nil {
		return nil, apperr.New(apperr.Configuration, "report audit store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &ReportListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *reportService) downloadURL(filename, tokenStr string) string {
	return fmt.Sprintf("%s/download/%s?token=%s", s.downloadBaseURL, filename, tokenStr)
}

// audit records the issuance in the audit store, best effort. The file is
// already on disk; a failed insert must not fail the request.
func (s *reportService) audit(ctx context.Context, saved *storage.SavedFile, checksum string, generatedAt, expiresAt time.Time) {
	if s.repo == nil {
		return
	}
	_, err := s.repo.Create(ctx, &model.Report{
		ID:          uuid.New().String(),
		Filename:    saved.Filename,
		StoragePath: saved.RelPath,
		Checksum:    checksum,
		SizeBytes:   saved.SizeBytes,
		GeneratedAt: generatedAt,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		s.logAuditError("audit_create_failed", saved.Filename, err)
	}
}

func (s *reportService) logAuditError(event, filename string, err error) {
	b, merr := json.Marshal(map[string]any{
		"ts":            s.clock.Now().Format(time.RFC3339Nano),
		"level":         "error",
		"component":     "service",
		"event":         event,
		"filename":      filename,
		"error_message": err.Error(),
	})
	if merr != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}

// sanitizeID reduces a subject identifier to characters safe for a bare
// filename. Anything else becomes an underscore.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
