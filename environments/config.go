package environments

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	WhatsApp   WhatsAppConfig
	Inspire    InspireConfig
	Billing    BillingConfig
	Validation ValidationConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type WhatsAppConfig struct {
	BaseURL      string
	TemplateName string
	Namespace    string
	HeaderImage  string
	AuthToken    string
	Timeout      time.Duration
}

type InspireConfig struct {
	ReplyURL        string
	ChatStateURL    string
	APIKey          string
	PushTimeout     time.Duration
	PushMaxAttempts int
	PushBackoffBase time.Duration
}

// BillingConfig carries the session and fee constants. These are billing
// contract parameters, not code constants, so every one of them is an env var.
type BillingConfig struct {
	SessionGap time.Duration
	UtilityFee decimal.Decimal
	CarrierFee decimal.Decimal
	MAUFee     decimal.Decimal
	Timezone   string
	PageSize   int
}

type ValidationConfig struct {
	Interval       time.Duration
	AlertWebhook   string
	AlertThreshold int
}

type AuthConfig struct {
	BillingAPIKey   string
	SchedulerAPIKey string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "5432"),
			User:     GetEnv("DB_USER", "relay"),
			Password: GetEnv("DB_PASSWORD", "relay123"),
			DBName:   GetEnv("DB_NAME", "whatsapp_relay"),
			SSLMode:  GetEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:      GetEnv("WHATSAPP_API_URL", ""),
			TemplateName: GetEnv("WHATSAPP_TEMPLATE_NAME", "live_inspire_chat"),
			Namespace:    GetEnv("WHATSAPP_TEMPLATE_NAMESPACE", ""),
			HeaderImage:  GetEnv("WHATSAPP_HEADER_IMAGE_URL", ""),
			AuthToken:    GetEnv("WHATSAPP_AUTH_TOKEN", ""),
			Timeout:      GetEnvAsDuration("WHATSAPP_TIMEOUT", 30*time.Second),
		},
		Inspire: InspireConfig{
			ReplyURL:        GetEnv("INSPIRE_REPLY_URL", "https://inspire-ohs.com/api/V3/WA/GetWaMsg"),
			ChatStateURL:    GetEnv("INSPIRE_CHATSTATE_URL", "https://www.inspire-ohs.com/API/V3/WA/WAChatState"),
			APIKey:          GetEnv("INSPIRE_API_KEY", ""),
			PushTimeout:     GetEnvAsDuration("INSPIRE_PUSH_TIMEOUT", 10*time.Second),
			PushMaxAttempts: GetEnvAsInt("INSPIRE_PUSH_MAX_ATTEMPTS", 3),
			PushBackoffBase: GetEnvAsDuration("INSPIRE_PUSH_BACKOFF_BASE", 2*time.Second),
		},
		Billing: BillingConfig{
			SessionGap: time.Duration(GetEnvAsInt("BILLING_SESSION_GAP_MINUTES", 1430)) * time.Minute,
			UtilityFee: GetEnvAsDecimal("BILLING_UTILITY_FEE", "0.0076"),
			CarrierFee: GetEnvAsDecimal("BILLING_CARRIER_FEE", "0.0100"),
			MAUFee:     GetEnvAsDecimal("BILLING_MAU_FEE", "0.0600"),
			Timezone:   GetEnv("BILLING_TIMEZONE", "Africa/Johannesburg"),
			PageSize:   GetEnvAsInt("BILLING_PAGE_SIZE", 1000),
		},
		Validation: ValidationConfig{
			Interval:       GetEnvAsDuration("VALIDATION_INTERVAL", 6*time.Hour),
			AlertWebhook:   GetEnv("VALIDATION_ALERT_WEBHOOK", ""),
			AlertThreshold: GetEnvAsInt("VALIDATION_ALERT_THRESHOLD", 2),
		},
		Auth: AuthConfig{
			BillingAPIKey:   GetEnv("BILLING_API_KEY", ""),
			SchedulerAPIKey: GetEnv("SCHEDULER_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsDecimal falls back to the default when the env value does not parse.
// Fee constants must never silently become zero.
func GetEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	fallback := decimal.RequireFromString(defaultValue)
	if value, exists := os.LookupEnv(key); exists {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return fallback
}
