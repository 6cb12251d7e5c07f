// Package token issues and validates the stateless tokens the service
// hands out: download tokens scoped to exactly one filename, and access
// tokens carrying roles for the management API. Tokens are HS256 JWTs;
// no server-side state is consulted and individual tokens cannot be
// revoked; expiry is the only invalidation mechanism.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"reportsigner/internal/apperr"
	"reportsigner/internal/clock"
	"reportsigner/internal/config"
)

// Token purposes. A download token is worthless for anything other than
// retrieving the exact file it was minted for.
const (
	PurposeDownload = "download"
	PurposeAccess   = "access"
)

// Validation failures, each distinct so callers can map them to their own
// error codes.
var (
	ErrInvalid          = apperr.New(apperr.Security, "token signature or format invalid")
	ErrExpired          = apperr.New(apperr.Security, "token expired")
	ErrWrongPurpose     = apperr.New(apperr.Security, "token not valid for this purpose")
	ErrFilenameMismatch = apperr.New(apperr.Security, "token not valid for this file")
)

// Claims is the JWT payload. Subject holds the filename for download
// tokens and the username for access tokens.
type Claims struct {
	Purpose string   `json:"purpose"`
	Roles   []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Codec issues and validates tokens.
type Codec interface {
	// IssueDownloadToken mints a token bound to filename with the
	// configured download TTL. Returns the token and its expiry.
	IssueDownloadToken(filename string) (string, time.Time, error)

	// ValidateDownload checks signature, expiry, purpose, and filename
	// binding in that order. Each check fails with its own sentinel.
	ValidateDownload(tokenStr, filename string) error

	// IssueAccessToken mints a role-carrying token for the management API.
	IssueAccessToken(username string, roles []string) (string, time.Time, error)

	// ValidateAccess checks signature, expiry, and purpose, returning the
	// claims for role checks.
	ValidateAccess(tokenStr string) (*Claims, error)
}

type hmacCodec struct {
	secret      []byte
	issuer      string
	downloadTTL time.Duration
	accessTTL   time.Duration
	clock       clock.Clock
}

// NewCodec constructs a Codec from the token configuration.
func NewCodec(cfg config.TokenConfig, clk clock.Clock) Codec {
	return &hmacCodec{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		downloadTTL: cfg.DownloadTTL,
		accessTTL:   cfg.AccessTTL,
		clock:       clk,
	}
}

func (c *hmacCodec) IssueDownloadToken(filename string) (string, time.Time, error) {
	return c.issue(filename, PurposeDownload, nil, c.downloadTTL)
}

func (c *hmacCodec) IssueAccessToken(username string, roles []string) (string, time.Time, error) {
	return c.issue(username, PurposeAccess, roles, c.accessTTL)
}

func (c *hmacCodec) issue(subject, purpose string, roles []string, ttl time.Duration) (string, time.Time, error) {
	now := c.clock.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		Purpose: purpose,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.Security, "sign token", err)
	}
	return signed, expiresAt, nil
}

func (c *hmacCodec) ValidateDownload(tokenStr, filename string) error {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return err
	}
	if claims.Purpose != PurposeDownload {
		return ErrWrongPurpose
	}
	if claims.Subject != filename {
		return ErrFilenameMismatch
	}
	return nil
}

func (c *hmacCodec) ValidateAccess(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// parse verifies signature and registered claims against the injected
// clock and maps library errors onto the package sentinels.
func (c *hmacCodec) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	return claims, nil
}
