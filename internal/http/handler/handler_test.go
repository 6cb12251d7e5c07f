package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"reportsigner/internal/apperr"
	"reportsigner/internal/clock"
	"reportsigner/internal/config"
	"reportsigner/internal/http/middleware"
	"reportsigner/internal/model"
	"reportsigner/internal/service"
	serviceMocks "reportsigner/internal/service/mocks"
	storageMocks "reportsigner/internal/storage/mocks"
	"reportsigner/internal/token"
)

func newCodec() token.Codec {
	return token.NewCodec(config.TokenConfig{
		Secret:      "test-secret",
		Issuer:      "report-signer",
		DownloadTTL: time.Hour,
		AccessTTL:   time.Hour,
	}, clock.System())
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store := new(storageMocks.MockFileStore)
	store.On("BasePath").Return(t.TempDir())

	app := fiber.New()
	app.Get("/health", HealthCheck(db, store))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy db", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	t.Run("no db configured", func(t *testing.T) {
		appNoDB := fiber.New()
		appNoDB.Get("/health", HealthCheck(nil, store))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := appNoDB.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateReport(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	app := fiber.New()
	app.Post("/generate", GenerateReport(mockSvc))

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)
		return resp
	}

	t.Run("success", func(t *testing.T) {
		expected := &model.GenerationResult{
			Success:       true,
			Filename:      "report_123_20260829_120000.pdf",
			DownloadToken: "tok",
			Checksum:      "abc",
		}
		mockSvc.On("Generate", mock.Anything, mock.MatchedBy(func(r *model.ReportRequest) bool {
			return r.SubjectID == "123"
		})).Return(expected, nil).Once()

		resp := post(`{"subjectId":"123","subjectName":"Jane Doe"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.GenerationResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.True(t, result.Success)
		assert.Equal(t, expected.Filename, result.Filename)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing subject id", func(t *testing.T) {
		mockSvc.On("Generate", mock.Anything, mock.Anything).
			Return(nil, service.ErrSubjectIDRequired).Once()

		resp := post(`{"subjectName":"Jane Doe"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_BODY", body.Error.Code)
	})

	t.Run("credential failure", func(t *testing.T) {
		mockSvc.On("Generate", mock.Anything, mock.Anything).
			Return(nil, apperr.New(apperr.Credential, "keystore unreadable")).Once()

		resp := post(`{"subjectId":"123"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SIGNING_UNAVAILABLE", body.Error.Code)
	})
}

func TestDownloadReport(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	app := fiber.New()
	app.Get("/download/:filename", DownloadReport(mockSvc))

	get := func(path string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, _ := app.Test(req)
		return resp
	}

	decode := func(resp *http.Response) downloadError {
		var body downloadError
		json.NewDecoder(resp.Body).Decode(&body)
		return body
	}

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "r.pdf", "good").
			Return([]byte("%PDF-1.7"), nil).Once()

		resp := get("/download/r.pdf?token=good")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "r.pdf")
	})

	t.Run("invalid token", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "r.pdf", "bad").
			Return(nil, token.ErrInvalid).Once()

		resp := get("/download/r.pdf?token=bad")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_TOKEN", decode(resp).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "r.pdf", "old").
			Return(nil, token.ErrExpired).Once()

		resp := get("/download/r.pdf?token=old")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_TOKEN", decode(resp).Code)
	})

	t.Run("wrong token type", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "r.pdf", "access").
			Return(nil, token.ErrWrongPurpose).Once()

		resp := get("/download/r.pdf?token=access")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "INVALID_TOKEN_TYPE", decode(resp).Code)
	})

	t.Run("filename mismatch", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "other.pdf", "tok").
			Return(nil, token.ErrFilenameMismatch).Once()

		resp := get("/download/other.pdf?token=tok")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "FILENAME_MISMATCH", decode(resp).Code)
	})

	t.Run("file not found", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "gone.pdf", "tok").
			Return(nil, apperr.New(apperr.NotFound, "file not found")).Once()

		resp := get("/download/gone.pdf?token=tok")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "FILE_NOT_FOUND", decode(resp).Code)
	})

	t.Run("traversal answered as not found", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "evil", "tok").
			Return(nil, apperr.New(apperr.Security, "path escapes storage boundary")).Once()

		resp := get("/download/evil?token=tok")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "FILE_NOT_FOUND", decode(resp).Code)
	})

	t.Run("internal error", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "r.pdf", "tok").
			Return(nil, errors.New("disk on fire")).Once()

		resp := get("/download/r.pdf?token=tok")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decode(resp).Code)
	})

	mockSvc.AssertExpectations(t)
}

func TestReportStatus(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	app := fiber.New()
	app.Get("/status/:filename", ReportStatus(mockSvc))

	t.Run("exists", func(t *testing.T) {
		mockSvc.On("Status", mock.Anything, "r.pdf").
			Return(&model.FileStatus{Filename: "r.pdf", Exists: true, SizeBytes: 8, Checksum: "abc"}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/status/r.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var st model.FileStatus
		json.NewDecoder(resp.Body).Decode(&st)
		assert.True(t, st.Exists)
		assert.Equal(t, "abc", st.Checksum)
	})

	t.Run("missing", func(t *testing.T) {
		mockSvc.On("Status", mock.Anything, "gone.pdf").
			Return(&model.FileStatus{Filename: "gone.pdf", Exists: false}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/status/gone.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var st model.FileStatus
		json.NewDecoder(resp.Body).Decode(&st)
		assert.False(t, st.Exists)
	})
}

func TestDeleteReport(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	app := fiber.New()
	app.Delete("/reports/:filename", DeleteReport(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, "r.pdf").Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/reports/r.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "r.pdf", body["filename"])
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, "gone.pdf").
			Return(apperr.New(apperr.NotFound, "file not found")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/reports/gone.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestManualCleanup(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	app := fiber.New()
	app.Post("/cleanup", ManualCleanup(mockSvc))

	mockSvc.On("Cleanup", mock.Anything).
		Return(&model.CleanupStats{TotalFiles: 3, TrashFiles: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/cleanup", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.CleanupStats
	json.NewDecoder(resp.Body).Decode(&stats)
	assert.Equal(t, int64(3), stats.TotalFiles)
	mockSvc.AssertExpectations(t)
}

func TestListReports(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	app := fiber.New()
	app.Get("/reports", ListReports(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).
			Return(&service.ReportListResult{Items: []model.Report{{ID: "a"}}, Total: 1}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/reports?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result service.ReportListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("audit store disabled", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).
			Return(nil, apperr.New(apperr.Configuration, "report audit store is not configured")).Once()

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "AUDIT_DISABLED", body.Error.Code)
	})
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	users := []config.UserCredential{
		{Username: "alice", PasswordHash: string(hash), Roles: []string{"user"}},
	}
	codec := newCodec()

	app := fiber.New()
	app.Post("/login", Login(users, codec))

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)
		return resp
	}

	t.Run("success", func(t *testing.T) {
		resp := post(`{"username":"alice","password":"s3cret"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "Bearer", body["tokenType"])

		// The issued token passes access validation.
		_, err := codec.ValidateAccess(body["token"].(string))
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := post(`{"username":"alice","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := post(`{"username":"mallory","password":"s3cret"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestValidateToken(t *testing.T) {
	codec := newCodec()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/validate", middleware.RequireAuth(codec), ValidateToken())

	t.Run("valid", func(t *testing.T) {
		tok, _, err := codec.IssueAccessToken("alice", []string{"user"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/validate", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "alice", body["username"])
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/validate", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	})
}

func TestRouting(t *testing.T) {
	mockSvc := new(serviceMocks.MockReportService)
	store := new(storageMocks.MockFileStore)
	store.On("BasePath").Return(t.TempDir())
	codec := newCodec()
	cfg := &config.AppConfig{}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, cfg, nil, store, codec, mockSvc)

	t.Run("protected routes require auth", func(t *testing.T) {
		for _, route := range []struct {
			method string
			path   string
		}{
			{http.MethodPost, "/api/v1/reports/generate"},
			{http.MethodGet, "/api/v1/reports/status/r.pdf"},
			{http.MethodGet, "/api/v1/reports/"},
			{http.MethodDelete, "/api/v1/reports/r.pdf"},
			{http.MethodPost, "/api/v1/reports/cleanup"},
		} {
			req := httptest.NewRequest(route.method, route.path, nil)
			resp, _ := app.Test(req)
			assert.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
		}
	})

	t.Run("admin routes reject user role", func(t *testing.T) {
		tok, _, err := codec.IssueAccessToken("alice", []string{"user"})
		require.NoError(t, err)

		for _, route := range []struct {
			method string
			path   string
		}{
			{http.MethodGet, "/api/v1/reports/"},
			{http.MethodDelete, "/api/v1/reports/r.pdf"},
			{http.MethodPost, "/api/v1/reports/cleanup"},
		} {
			req := httptest.NewRequest(route.method, route.path, nil)
			req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
			resp, _ := app.Test(req)
			assert.Equalf(t, http.StatusForbidden, resp.StatusCode, "%s %s", route.method, route.path)
		}
	})

	t.Run("download is public", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "r.pdf", "tok").
			Return([]byte("%PDF"), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/download/r.pdf?token=tok", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health is public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
