package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Telegram
	TelegramToken string
	AdminChatID   int64
	WebhookURL    string

	// Mercado Pago
	MPAccessToken string

	// Database
	SQLiteDBPath string

	// Ledger
	KeepMonths   int
	DedupeText   bool
	ListPageSize int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Notify worker
	SweepInterval  time.Duration
	SweepBatchSize int
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		AdminChatID:   getEnvInt64("ADMIN_CHAT_ID", 0),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),

		MPAccessToken: getEnv("MP_ACCESS_TOKEN", ""),

		SQLiteDBPath: getEnv("DB_PATH", "./data/finbot.db"),

		KeepMonths:   getEnvInt("KEEP_MONTHS", 6),
		DedupeText:   getEnvBool("DEDUP_MANUAL_DEPOSITS", false),
		ListPageSize: getEnvInt("LIST_PAGE_SIZE", 10),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finbot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "payment_notices"),

		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 20),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.TelegramToken == "" {
		errors = append(errors, "TELEGRAM_TOKEN is required")
	}
	if c.MPAccessToken == "" {
		errors = append(errors, "MP_ACCESS_TOKEN is required")
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.KeepMonths < 1 {
		errors = append(errors, fmt.Sprintf("invalid KEEP_MONTHS %d: must be at least 1", c.KeepMonths))
	}
	if c.ListPageSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid LIST_PAGE_SIZE %d: must be at least 1", c.ListPageSize))
	}

	// AMQP is optional; when configured it must be coherent.
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

	if c.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 second", c.SweepInterval))
	}
	if c.SweepBatchSize < 1 || c.SweepBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sweep batch size %d: must be between 1 and 1000", c.SweepBatchSize))
	}

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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
