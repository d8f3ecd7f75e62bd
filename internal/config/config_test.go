package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.OTPTTL != 5*time.Minute {
		t.Errorf("OTPTTL = %v, want 5m", cfg.OTPTTL)
	}
	if cfg.JWTAccessTTL != time.Hour {
		t.Errorf("JWTAccessTTL = %v, want 1h", cfg.JWTAccessTTL)
	}
	if cfg.SMSServiceType != "mock" {
		t.Errorf("SMSServiceType = %q, want mock", cfg.SMSServiceType)
	}
	if cfg.FileStore != "local" {
		t.Errorf("FileStore = %q, want local", cfg.FileStore)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing jwt secret", map[string]string{}, "JWT_SECRET"},
		{"bad store backend", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"bad fixed code", map[string]string{"JWT_SECRET": "s", "OTP_FIXED_CODE": "12ab56"}, "OTP_FIXED_CODE"},
		{"echo in production", map[string]string{"JWT_SECRET": "s", "OTP_RETURN_TO_CLIENT": "true", "APP_ENV": "production"}, "OTP_RETURN_TO_CLIENT"},
		{"gcs without bucket", map[string]string{"JWT_SECRET": "s", "FILE_STORE": "gcs"}, "GCS_BUCKET"},
		{"bad ttl", map[string]string{"JWT_SECRET": "s", "OTP_TTL": "soon"}, "OTP_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to mention %s", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_MemoryStoreAllowsEmptySecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_BACKEND", "memory")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDSN(t *testing.T) {
	c := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "disable"}
	if got, want := c.DSN(), "postgres://u:p@h:5432/d?sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	c.DBDSN = "host=x"
	if got := c.DSN(); got != "host=x" {
		t.Errorf("DSN() = %q, want DB_DSN override", got)
	}
}
