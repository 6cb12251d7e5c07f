package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"reportsigner/internal/apperr"
	"reportsigner/internal/config"
	"reportsigner/internal/http/middleware"
	"reportsigner/internal/model"
	"reportsigner/internal/service"
	"reportsigner/internal/storage"
	"reportsigner/internal/token"
)

// GenerateReport renders, signs and stores a verification report.
func GenerateReport(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.ReportRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}

		res, err := svc.Generate(c.UserContext(), &req)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrRequestNil), errors.Is(err, service.ErrSubjectIDRequired):
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", err.Error())
			case apperr.IsKind(err, apperr.Configuration), apperr.IsKind(err, apperr.Credential):
				return writeError(c, fiber.StatusInternalServerError, "SIGNING_UNAVAILABLE", "signing credentials unavailable")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.JSON(res)
	}
}

// downloadError is the flat error body served on the public download
// endpoint, consumed by QR scanners and plain browsers.
type downloadError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeDownloadError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(downloadError{Error: message, Code: code})
}

// DownloadReport serves a stored report to the bearer of a valid download
// token scoped to the requested filename.
func DownloadReport(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filename := c.Params("filename")
		tokenStr := c.Query("token")
		if tokenStr == "" {
			auth := c.Get(fiber.HeaderAuthorization)
			if len(auth) > 7 && auth[:7] == "Bearer " {
				tokenStr = auth[7:]
			}
		}

		content, err := svc.Download(c.UserContext(), filename, tokenStr)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrInvalid), errors.Is(err, token.ErrExpired):
				return writeDownloadError(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "download token is invalid or expired")
			case errors.Is(err, token.ErrWrongPurpose):
				return writeDownloadError(c, fiber.StatusForbidden, "INVALID_TOKEN_TYPE", "token is not a download token")
			case errors.Is(err, token.ErrFilenameMismatch):
				return writeDownloadError(c, fiber.StatusForbidden, "FILENAME_MISMATCH", "token is not valid for this file")
			case apperr.IsKind(err, apperr.NotFound), apperr.IsKind(err, apperr.Security):
				return writeDownloadError(c, fiber.StatusNotFound, "FILE_NOT_FOUND", "file not found")
			default:
				return writeDownloadError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
		return c.Send(content)
	}
}

// ReportStatus reports existence, size and checksum for a stored file.
func ReportStatus(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.UserContext(), c.Params("filename"))
		if err != nil {
			if apperr.IsKind(err, apperr.Security) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(st)
	}
}

// DeleteReport removes a stored report by filename.
func DeleteReport(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filename := c.Params("filename")
		if err := svc.Delete(c.UserContext(), filename); err != nil {
			switch {
			case apperr.IsKind(err, apperr.NotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			case apperr.IsKind(err, apperr.Security):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.JSON(fiber.Map{"message": "report deleted", "filename": filename})
	}
}

// ManualCleanup runs a retention sweep immediately and returns the
// resulting storage usage.
func ManualCleanup(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Cleanup(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(stats)
	}
}

// ListReports pages through the issuance audit trail.
func ListReports(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			if apperr.IsKind(err, apperr.Configuration) {
				return writeError(c, fiber.StatusServiceUnavailable, "AUDIT_DISABLED", "report audit store is not configured")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and issues an access token.
func Login(users []config.UserCredential, codec token.Codec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}

		var user *config.UserCredential
		for i := range users {
			if users[i].Username == req.Username {
				user = &users[i]
				break
			}
		}
		if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return writeError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
		}

		tok, expiresAt, err := codec.IssueAccessToken(user.Username, user.Roles)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{
			"token":     tok,
			"tokenType": "Bearer",
			"roles":     user.Roles,
			"expiresAt": expiresAt,
		})
	}
}

// ValidateToken echoes the claims of a valid access token. It must run
// behind middleware.RequireAuth.
func ValidateToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := middleware.ClaimsFromCtx(c)
		if claims == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "missing access token")
		}
		return c.JSON(fiber.Map{
			"username":  claims.Subject,
			"roles":     claims.Roles,
			"expiresAt": claims.ExpiresAt.Time,
		})
	}
}

// HealthCheck verifies the storage directory and, when configured, the
// audit database. db may be nil.
func HealthCheck(db *sql.DB, store storage.FileStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := os.Stat(store.BasePath()); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a plain liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
