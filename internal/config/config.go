package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	money "github.com/Rhymond/go-money"
)

type Config struct {
	// Database
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP; an empty URL disables ledger events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Ledger engine
	Timezone          string
	Currency          string
	CommitMaxAttempts int

	// Budget id cache
	BudgetCache     string
	BudgetCacheSize int
	BudgetCacheTTL  time.Duration

	// Workers
	RecurringInterval time.Duration
	MetricsAddr       string
}

var (
	validBackends = []string{"sqlite", "postgres"}
	validCaches   = []string{"lru", "ristretto", "none"}
)

func Load() *Config {
	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledgerbook.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledgerbook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledgers"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		Timezone:          getEnv("TIMEZONE", "UTC"),
		Currency:          strings.ToUpper(getEnv("CURRENCY", "EUR")),
		CommitMaxAttempts: getEnvInt("COMMIT_MAX_ATTEMPTS", 5),

		BudgetCache:     getEnv("BUDGET_CACHE", "lru"),
		BudgetCacheSize: getEnvInt("BUDGET_CACHE_SIZE", 1024),
		BudgetCacheTTL:  getEnvDuration("BUDGET_CACHE_TTL", 10*time.Minute),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
	}

	return cfg
}

// Location resolves Timezone; budgets are bucketed by month in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SheetsEnabled reports whether ledger snapshots go to a real spreadsheet.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid database URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if money.GetCurrency(c.Currency) == nil {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be an ISO 4217 code", c.Currency))
	}
	if c.CommitMaxAttempts < 1 || c.CommitMaxAttempts > 20 {
		errors = append(errors, fmt.Sprintf("invalid commit max attempts %d: must be between 1 and 20", c.CommitMaxAttempts))
	}

	if !slices.Contains(validCaches, c.BudgetCache) {
		errors = append(errors, fmt.Sprintf("invalid budget cache '%s': must be one of %v", c.BudgetCache, validCaches))
	} else if c.BudgetCache != "none" {
		if c.BudgetCacheSize < 1 {
			errors = append(errors, fmt.Sprintf("invalid budget cache size %d: must be at least 1", c.BudgetCacheSize))
		}
		if c.BudgetCacheTTL <= 0 {
			errors = append(errors, fmt.Sprintf("invalid budget cache TTL %v: must be positive", c.BudgetCacheTTL))
		}
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if c.MetricsAddr != "" {
		if _, port, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid metrics address '%s': %v", c.MetricsAddr, err))
		} else if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid metrics port '%s': must be between 1 and 65535", port))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
