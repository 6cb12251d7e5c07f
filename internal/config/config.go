package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL settings for the optional report audit
// store. The audit store is enabled only when Host is set.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// SignatureConfig holds the PKCS#12 keystore location and the metadata
// embedded in each signature.
type SignatureConfig struct {
	KeystorePath     string
	KeystorePassword string
	Reason           string
	Location         string
	Contact          string
}

// StorageConfig holds the on-disk report storage settings.
type StorageConfig struct {
	BasePath        string
	TrashDirName    string
	DownloadBaseURL string
}

// CleanupConfig holds the retention sweep settings.
type CleanupConfig struct {
	Enabled            bool
	RetentionMonths    int
	TrashRetentionDays int
	Interval           time.Duration
}

// TokenConfig holds the signing secret and lifetimes for issued tokens.
type TokenConfig struct {
	Secret      string
	Issuer      string
	DownloadTTL time.Duration
	AccessTTL   time.Duration
}

// QRConfig holds QR image encoding settings.
type QRConfig struct {
	Size int
}

// UserCredential is one API user parsed from AUTH_USERS. Password hashes
// are bcrypt; plaintext passwords never appear in configuration or source.
type UserCredential struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Signature SignatureConfig
	Storage   StorageConfig
	Cleanup   CleanupConfig
	Token     TokenConfig
	QR        QRConfig
	Users     []UserCredential
	Database  DatabaseConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Signature: SignatureConfig{
			KeystorePath:     getEnv("SIGN_P12_PATH", ""),
			KeystorePassword: getEnv("SIGN_P12_PASSWORD", ""),
			Reason:           getEnv("SIGN_REASON", "Report integrity certification"),
			Location:         getEnv("SIGN_LOCATION", ""),
			Contact:          getEnv("SIGN_CONTACT", ""),
		},
		Storage: StorageConfig{
			BasePath:        getEnv("STORAGE_BASE_PATH", ""),
			TrashDirName:    getEnv("STORAGE_TRASH_DIR", "_trash"),
			DownloadBaseURL: getEnv("DOWNLOAD_BASE_URL", "http://localhost:8080"),
		},
		Cleanup: CleanupConfig{
			Enabled:            getEnvBool("CLEANUP_ENABLED", true),
			RetentionMonths:    getEnvInt("CLEANUP_RETENTION_MONTHS", 6),
			TrashRetentionDays: getEnvInt("CLEANUP_TRASH_RETENTION_DAYS", 30),
			Interval:           getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		},
		Token: TokenConfig{
			Secret:      getEnv("TOKEN_SECRET", ""),
			Issuer:      getEnv("TOKEN_ISSUER", "report-signer"),
			DownloadTTL: getEnvDuration("TOKEN_DOWNLOAD_TTL", 30*24*time.Hour),
			AccessTTL:   getEnvDuration("TOKEN_ACCESS_TTL", 24*time.Hour),
		},
		QR: QRConfig{
			Size: getEnvInt("QR_SIZE", 150),
		},
		Users: parseUsers(getEnv("AUTH_USERS", "")),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
	}
}

// Validate checks the startup-time required settings. Missing values here
// halt process initialization; everything else degrades or defaults.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.Signature.KeystorePath == "" {
		missing = append(missing, "SIGN_P12_PATH")
	}
	if c.Signature.KeystorePassword == "" {
		missing = append(missing, "SIGN_P12_PASSWORD")
	}
	if c.Storage.BasePath == "" {
		missing = append(missing, "STORAGE_BASE_PATH")
	}
	if c.Token.Secret == "" {
		missing = append(missing, "TOKEN_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// parseUsers parses AUTH_USERS entries of the form
// "username:bcrypt-hash:ROLE1|ROLE2", comma-separated. Malformed entries
// are dropped rather than failing startup.
func parseUsers(s string) []UserCredential {
	if s == "" {
		return nil
	}
	var users []UserCredential
	for _, entry := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			continue
		}
		var roles []string
		for _, r := range strings.Split(parts[2], "|") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		users = append(users, UserCredential{
			Username:     parts[0],
			PasswordHash: parts[1],
			Roles:        roles,
		})
	}
	return users
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
