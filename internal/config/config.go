package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TargetDB     = "db"
	TargetHosted = "hosted"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Environment string

	DBDriver            string
	DBPath              string
	DatabaseURL         string
	MembersTable        string
	AccountsTable       string
	AccountsEmailColumn string

	ImportTarget     string
	BatchSize        int
	ImportTimezone   string
	ColumnLayoutPath string
	OutputDir        string

	LogLevel  string
	LogFormat string
	LogFile   string

	HostedURL          string
	HostedServiceKey   string
	HostedRateLimitRPS int
	HostedTimeoutMs    int
	HostedRetryMax     int
	HostedPageSize     int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleRefreshToken string

	AWSRegion     string
	AWSS3Endpoint string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: getEnv("ENVIRONMENT", "local"),

		DBDriver:            strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:              getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MembersTable:        getEnv("MEMBERS_TABLE", "legacy_members"),
		AccountsTable:       getEnv("ACCOUNTS_TABLE", "accounts"),
		AccountsEmailColumn: getEnv("ACCOUNTS_EMAIL_COLUMN", "email"),

		ImportTarget:     strings.ToLower(getEnv("IMPORT_TARGET", TargetDB)),
		BatchSize:        getEnvInt("BATCH_SIZE", 50),
		ImportTimezone:   getEnv("IMPORT_TIMEZONE", "Local"),
		ColumnLayoutPath: getEnv("COLUMN_LAYOUT_PATH", ""),
		OutputDir:        getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),

		HostedURL:          getEnv("HOSTED_URL", ""),
		HostedServiceKey:   getEnv("HOSTED_SERVICE_KEY", ""),
		HostedRateLimitRPS: getEnvInt("HOSTED_RATE_LIMIT_RPS", 5),
		HostedTimeoutMs:    getEnvInt("HOSTED_TIMEOUT_MS", 30000),
		HostedRetryMax:     getEnvInt("HOSTED_RETRY_MAX", 3),
		HostedPageSize:     getEnvInt("HOSTED_PAGE_SIZE", 1000),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		AWSS3Endpoint: getEnv("AWS_S3_ENDPOINT", ""),
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Location resolves IMPORT_TIMEZONE. Subscription dates are calendar days in this zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.ImportTimezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
