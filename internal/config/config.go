package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	CORSOrigins []string
	Timezone    string
	NodeID      int64

	OTLPEndpoint string

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

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CouponValidateRate  float64
	CouponValidateBurst int

	SMS SMSConfig

	// PDFFontPath is a TTF with Hangul glyphs; the built-in PDF fonts have none.
	PDFFontPath string

	Scheduler SchedulerConfig

	MetricsPush MetricsPushConfig
}

// SMSConfig selects the outbound SMS provider.
type SMSConfig struct {
	Provider          string
	AligoAPIKey       string
	AligoUserID       string
	AligoSender       string
	AligoEndpoint     string
	AligoTestMode     bool
	DefaultBranchName string
}

type SchedulerConfig struct {
	Enabled      bool
	TickInterval time.Duration
	EnabledJobs  []string
	BatchSize    int
}

// MetricsPushConfig is used by one-shot commands that exit before a scrape.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

const (
	SMSProviderStub  = "stub"
	SMSProviderAligo = "aligo"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "eroom"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		CORSOrigins:  parseList(getenv("CORS_ALLOW_ORIGINS", "*")),
		Timezone:     getenv("APP_TIMEZONE", "Asia/Seoul"),
		NodeID:       getenvInt64("SNOWFLAKE_NODE", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "eroom"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		CouponValidateRate:  getenvFloat("COUPON_VALIDATE_RATE", 1),
		CouponValidateBurst: int(getenvInt64("COUPON_VALIDATE_BURST", 10)),

		SMS: SMSConfig{
			Provider:          strings.ToLower(getenv("SMS_PROVIDER", SMSProviderStub)),
			AligoAPIKey:       strings.TrimSpace(getenv("ALIGO_API_KEY", "")),
			AligoUserID:       strings.TrimSpace(getenv("ALIGO_USER_ID", "")),
			AligoSender:       strings.TrimSpace(getenv("ALIGO_SENDER", "")),
			AligoEndpoint:     getenv("ALIGO_ENDPOINT", "https://apis.aligo.in/send/"),
			AligoTestMode:     getenvBool("ALIGO_TEST_MODE", false),
			DefaultBranchName: getenv("DEFAULT_BRANCH_NAME", "이룸 스튜디오"),
		},

		PDFFontPath: strings.TrimSpace(getenv("PDF_FONT_PATH", "")),

		Scheduler: SchedulerConfig{
			Enabled:      getenvBool("SCHEDULER_ENABLED", true),
			TickInterval: time.Duration(getenvInt64("SCHEDULER_TICK_SECONDS", 3600)) * time.Second,
			EnabledJobs:  parseList(getenv("SCHEDULER_JOBS", "")),
			BatchSize:    int(getenvInt64("SCHEDULER_BATCH_SIZE", 200)),
		},

		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
		},
	}

	// Aligo without credentials falls back to the stub, same as an unset provider.
	if cfg.SMS.Provider == SMSProviderAligo && (cfg.SMS.AligoAPIKey == "" || cfg.SMS.AligoUserID == "" || cfg.SMS.AligoSender == "") {
		cfg.SMS.Provider = SMSProviderStub
	}

	return cfg
}

// Location resolves the configured business timezone, UTC on failure.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
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
