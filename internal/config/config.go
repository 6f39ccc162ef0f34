package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	InstanceID       string
	Mode             string
	Environment      string
	AuthCookieSecure bool
	DefaultOrgID     int64
	AuthJWTSecret    string

	OTLPEndpoint string

	Cloud CloudConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	OAuth2ClientID     string
	OAuth2ClientSecret string

	Email     EmailConfig
	Slack     SlackConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Bootstrap BootstrapConfig
}

// BootstrapConfig controls first-run seeding for self-hosted installs.
type BootstrapConfig struct {
	EnsureDefaultOrgAndUser bool
	SeedDemoData            bool
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type SlackConfig struct {
	WebhookURL string
	Channel    string
}

// RateLimitConfig covers the public registration surface. The same redis
// connection backs the token buckets and the scheduler's job leases.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PublicSubmitRate     float64
	PublicSubmitBurst    int
	PublicPreviewRate    float64
	PublicPreviewBurst   int
	SubmitLockTTLSeconds int
}

type SchedulerConfig struct {
	RunIntervalSeconds          int
	BatchSize                   int
	EnabledJobs                 []string
	LockTTLSeconds              int
	CapacityAlertThresholdPct   float64
	RollupLookbackMinutes       int
	SessionRetentionDays        int
	OutboxStallThresholdMinutes int
}

type CloudConfig struct {
	OrganizationID   string
	OrganizationName string
	Metrics          CloudMetricsConfig
}

type CloudMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	mode := normalizeMode(getenv("APP_MODE", ModeOSS))
	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "eventra"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		InstanceID:       strings.TrimSpace(getenv("INSTANCE_ID", "")),
		Mode:             mode,
		Environment:      environment,
		AuthCookieSecure: authCookieSecure,
		DefaultOrgID:     getenvInt64("DEFAULT_ORG", 0),
		AuthJWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),
		Cloud: CloudConfig{
			OrganizationID:   strings.TrimSpace(getenv("CLOUD_ORGANIZATION_ID", "")),
			OrganizationName: getenv("CLOUD_ORGANIZATION_NAME", ""),
			Metrics: CloudMetricsConfig{
				Enabled:   getenvBool("CLOUD_METRICS_ENABLED", true),
				Exporter:  strings.ToLower(getenv("CLOUD_METRICS_EXPORTER", "")),
				Endpoint:  strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
				AuthToken: strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
			},
		},
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5433"),
		DBName:             getenv("DATABASE_NAME", "postgres"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", "35411231"),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		OAuth2ClientID:     strings.TrimSpace(getenv("OAUTH2_CLIENT_ID", "")),
		OAuth2ClientSecret: strings.TrimSpace(getenv("OAUTH2_CLIENT_SECRET", "")),
		Email: EmailConfig{
			Enabled:      getenvBool("EMAIL_ENABLED", false),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@localhost"),
		},
		Slack: SlackConfig{
			WebhookURL: strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
			Channel:    getenv("SLACK_CHANNEL", "#registrations"),
		},
		RateLimit: RateLimitConfig{
			Enabled:              getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:            strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:        getenv("REDIS_PASSWORD", ""),
			RedisDB:              int(getenvInt64("REDIS_DB", 0)),
			PublicSubmitRate:     getenvFloat("RATE_LIMIT_SUBMIT_RATE", 5),
			PublicSubmitBurst:    int(getenvInt64("RATE_LIMIT_SUBMIT_BURST", 10)),
			PublicPreviewRate:    getenvFloat("RATE_LIMIT_PREVIEW_RATE", 20),
			PublicPreviewBurst:   int(getenvInt64("RATE_LIMIT_PREVIEW_BURST", 40)),
			SubmitLockTTLSeconds: int(getenvInt64("RATE_LIMIT_SUBMIT_LOCK_TTL_SECONDS", 10)),
		},
		Scheduler: SchedulerConfig{
			RunIntervalSeconds:          int(getenvInt64("SCHEDULER_RUN_INTERVAL_SECONDS", 60)),
			BatchSize:                   int(getenvInt64("SCHEDULER_BATCH_SIZE", 100)),
			EnabledJobs:                 parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			LockTTLSeconds:              int(getenvInt64("SCHEDULER_LOCK_TTL_SECONDS", 120)),
			CapacityAlertThresholdPct:   getenvFloat("SCHEDULER_CAPACITY_ALERT_THRESHOLD_PCT", 80),
			RollupLookbackMinutes:       int(getenvInt64("SCHEDULER_ROLLUP_LOOKBACK_MINUTES", 15)),
			SessionRetentionDays:        int(getenvInt64("SCHEDULER_SESSION_RETENTION_DAYS", 7)),
			OutboxStallThresholdMinutes: int(getenvInt64("SCHEDULER_OUTBOX_STALL_MINUTES", 15)),
		},
		Bootstrap: BootstrapConfig{
			EnsureDefaultOrgAndUser: getenvBool("BOOTSTRAP_DEFAULT_ORG_AND_USER", false),
			SeedDemoData:            getenvBool("BOOTSTRAP_DEMO_DATA", false),
		},
	}

	return cfg
}

const (
	ModeOSS        = "oss"
	ModeCloud      = "cloud"
	ModeStandalone = "standalone"
)

func (c Config) IsCloud() bool {
	return c.Mode == ModeCloud
}

func normalizeMode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case ModeCloud:
		return ModeCloud
	case ModeStandalone, ModeOSS:
		return ModeOSS
	default:
		return ModeOSS
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
