package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         string
	AllowOrigins string
	Env          string
	LogLevel     string

	StoreBackend string
	DBDSN        string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string

	JWTSecret     string
	JWTIssuer     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	OTPTTL            time.Duration
	OTPFixedCode      string
	OTPReturnToClient bool

	SMSServiceType   string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSLocalAPIKey   string
	SMSLocalBaseURL  string
	SMSLocalSender   string

	FileStore     string
	UploadDir     string
	PublicBaseURL string
	GCSBucket     string
	MaxUploadMB   int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func atob(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

// Load reads the environment (after godotenv has populated it) and validates
// combinations that would otherwise fail at request time.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getenv("PORT", "8080"),
		AllowOrigins: getenv("ALLOW_ORIGINS", "*"),
		Env:          getenv("APP_ENV", ""),
		LogLevel:     getenv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "postgres")),
		DBDSN:        getenv("DB_DSN", ""),
		DBHost:       getenv("DB_HOST", "localhost"),
		DBPort:       getenv("DB_PORT", "5432"),
		DBUser:       getenv("DB_USER", "postgres"),
		DBPassword:   getenv("DB_PASSWORD", ""),
		DBName:       getenv("DB_NAME", "complaints"),
		DBSSLMode:    getenv("DB_SSLMODE", "disable"),

		JWTSecret: getenv("JWT_SECRET", ""),
		JWTIssuer: getenv("JWT_ISSUER", "complaints-api"),

		OTPFixedCode:      getenv("OTP_FIXED_CODE", ""),
		OTPReturnToClient: atob("OTP_RETURN_TO_CLIENT", false),

		SMSServiceType:   strings.ToLower(getenv("SMS_SERVICE_TYPE", "mock")),
		TwilioAccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getenv("TWILIO_FROM_NUMBER", ""),
		SMSLocalAPIKey:   getenv("SMS_LOCAL_API_KEY", ""),
		SMSLocalBaseURL:  getenv("SMS_LOCAL_BASE_URL", ""),
		SMSLocalSender:   getenv("SMS_LOCAL_SENDER", ""),

		FileStore:     strings.ToLower(getenv("FILE_STORE", "local")),
		UploadDir:     getenv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
		GCSBucket:     getenv("GCS_BUCKET", ""),
		MaxUploadMB:   int64(atoi("MAX_UPLOAD_MB", 15)),
	}

	var err error
	if cfg.JWTAccessTTL, err = duration("JWT_ACCESS_TTL", 60*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = duration("JWT_REFRESH_TTL", 168*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = duration("OTP_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("config: STORE_BACKEND must be postgres or memory, got %q", cfg.StoreBackend)
	}
	if cfg.JWTSecret == "" && cfg.StoreBackend == "postgres" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.OTPFixedCode != "" && !isSixDigits(cfg.OTPFixedCode) {
		return nil, errors.New("config: OTP_FIXED_CODE must be exactly 6 digits")
	}
	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	switch cfg.FileStore {
	case "local":
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, errors.New("config: GCS_BUCKET must be set when FILE_STORE=gcs")
		}
	default:
		return nil, fmt.Errorf("config: FILE_STORE must be local or gcs, got %q", cfg.FileStore)
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 15
	}
	return cfg, nil
}

// DSN returns DB_DSN when set, otherwise builds a postgres URL from the parts.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
