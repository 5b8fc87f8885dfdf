// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// TelegramConfig provides settings for the chat transport client.
type TelegramConfig interface {
	GetTelegramBotToken() string
	GetTelegramAPIBase() string
	IsTelegramEnabled() bool
}

// NotificationConfig provides settings for notification dispatch.
type NotificationConfig interface {
	GetNotificationSendTimeout() time.Duration
	GetReservationMaxAge() time.Duration
	GetJanitorInterval() time.Duration
}

// OrchestratorConfig provides settings for inbound event processing.
type OrchestratorConfig interface {
	GetJobLockTimeout() time.Duration
}

// OrdersConfig provides settings for the external order-lookup service.
type OrdersConfig interface {
	GetOrdersAPIURL() string
	GetOrdersAPIKey() string
	GetOrdersCacheTTL() time.Duration
	IsOrdersEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketExports() string
	IsMinIOEnabled() bool
}

// SMTPConfig provides settings for operational email alerts.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetOpsAlertEmail() string
	IsSMTPEnabled() bool
}

// WebhookConfig provides settings for the CRM webhook ingress.
type WebhookConfig interface {
	GetWebhookSecret() string
	// GetWebhookStatusKinds maps CRM pipeline status ids to event kinds
	// for form-encoded payloads that carry no explicit kind.
	GetWebhookStatusKinds() map[int64]string
}

// SchedulerConfig provides settings for background task processing.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetNotificationRetryMax() int
	GetNotificationRetryDelay() time.Duration
	GetEscalationDelay() time.Duration
}

// InviteConfig provides settings for invite link generation.
type InviteConfig interface {
	GetInviteLinkBase() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	RedisURL                string
	RedisTLSInsecure        bool
	JWTAccessSecret         string
	AccessTokenTTL          time.Duration
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	TelegramBotToken        string
	TelegramAPIBase         string
	NotificationSendTimeout time.Duration
	ReservationMaxAge       time.Duration
	JanitorInterval         time.Duration
	JobLockTimeout          time.Duration
	OrdersAPIURL            string
	OrdersAPIKey            string
	OrdersCacheTTL          time.Duration
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketExports      string
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	OpsAlertEmail           string
	WebhookSecret           string
	WebhookStatusKinds      map[int64]string
	AsynqQueueName          string
	AsynqConcurrency        int
	NotificationRetryMax    int
	NotificationRetryDelay  time.Duration
	EscalationDelay         time.Duration
	InviteLinkBase          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthServiceConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// TelegramConfig implementation
func (c *Config) GetTelegramBotToken() string { return c.TelegramBotToken }
func (c *Config) GetTelegramAPIBase() string  { return c.TelegramAPIBase }
func (c *Config) IsTelegramEnabled() bool     { return c.TelegramBotToken != "" }

// NotificationConfig implementation
func (c *Config) GetNotificationSendTimeout() time.Duration { return c.NotificationSendTimeout }
func (c *Config) GetReservationMaxAge() time.Duration       { return c.ReservationMaxAge }
func (c *Config) GetJanitorInterval() time.Duration         { return c.JanitorInterval }

// OrchestratorConfig implementation
func (c *Config) GetJobLockTimeout() time.Duration { return c.JobLockTimeout }

// OrdersConfig implementation
func (c *Config) GetOrdersAPIURL() string          { return c.OrdersAPIURL }
func (c *Config) GetOrdersAPIKey() string          { return c.OrdersAPIKey }
func (c *Config) GetOrdersCacheTTL() time.Duration { return c.OrdersCacheTTL }
func (c *Config) IsOrdersEnabled() bool            { return c.OrdersAPIURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketExports() string { return c.MinioBucketExports }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetOpsAlertEmail() string    { return c.OpsAlertEmail }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" && c.OpsAlertEmail != "" }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string                { return c.WebhookSecret }
func (c *Config) GetWebhookStatusKinds() map[int64]string { return c.WebhookStatusKinds }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string                { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                 { return c.AsynqConcurrency }
func (c *Config) GetNotificationRetryMax() int             { return c.NotificationRetryMax }
func (c *Config) GetNotificationRetryDelay() time.Duration { return c.NotificationRetryDelay }
func (c *Config) GetEscalationDelay() time.Duration        { return c.EscalationDelay }

// InviteConfig implementation
func (c *Config) GetInviteLinkBase() string { return c.InviteLinkBase }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	statusKinds, err := parseStatusKinds()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:          mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		TelegramBotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIBase:         getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
		NotificationSendTimeout: mustDuration(getEnv("NOTIFICATION_SEND_TIMEOUT", "10s")),
		ReservationMaxAge:       mustDuration(getEnv("NOTIFICATION_RESERVATION_MAX_AGE", "10m")),
		JanitorInterval:         mustDuration(getEnv("NOTIFICATION_JANITOR_INTERVAL", "1m")),
		JobLockTimeout:          mustDuration(getEnv("JOB_LOCK_TIMEOUT", "30s")),
		OrdersAPIURL:            getEnv("ORDERS_API_URL", ""),
		OrdersAPIKey:            getEnv("ORDERS_API_KEY", ""),
		OrdersCacheTTL:          mustDuration(getEnv("ORDERS_CACHE_TTL", "10m")),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketExports:      getEnv("MINIO_BUCKET_EXPORTS", "measurement-exports"),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "MeasureHub"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		OpsAlertEmail:           getEnv("OPS_ALERT_EMAIL", ""),
		WebhookSecret:           getEnv("WEBHOOK_HMAC_SECRET", ""),
		WebhookStatusKinds:      statusKinds,
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		NotificationRetryMax:    int(mustInt64(getEnv("NOTIFICATION_RETRY_MAX", "5"))),
		NotificationRetryDelay:  mustDuration(getEnv("NOTIFICATION_RETRY_DELAY", "30s")),
		EscalationDelay:         mustDuration(getEnv("ESCALATION_DELAY", "30m")),
		InviteLinkBase:          getEnv("INVITE_LINK_BASE", "https://t.me/measurehub_bot?start="),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// parseStatusKinds reads the WEBHOOK_STATUS_* variables, each a CSV of CRM
// pipeline status ids that map to one event kind.
func parseStatusKinds() (map[int64]string, error) {
	kinds := map[string]string{
		"created":    "WEBHOOK_STATUS_CREATED",
		"confirmed":  "WEBHOOK_STATUS_CONFIRMED",
		"completed":  "WEBHOOK_STATUS_COMPLETED",
		"cancelled":  "WEBHOOK_STATUS_CANCELLED",
		"reassigned": "WEBHOOK_STATUS_REASSIGNED",
	}

	out := make(map[int64]string)
	for kind, envKey := range kinds {
		for _, raw := range splitCSV(getEnv(envKey, "")) {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid status id %q", envKey, raw)
			}
			if existing, ok := out[id]; ok && existing != kind {
				return nil, fmt.Errorf("%s: status id %d already mapped to %q", envKey, id, existing)
			}
			out[id] = kind
		}
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
