package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 30 * 24 * time.Hour},
		{"OtpTTL", cfg.Auth.OtpTTL, 5 * time.Minute},
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Auth.PasswordMinLen != 8 {
		t.Errorf("PasswordMinLen: got %d, want 8", cfg.Auth.PasswordMinLen)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ACCESS_TOKEN_EXPIRY", "24h")
	os.Setenv("OTP_TTL", "2m")
	os.Setenv("PASSWORD_MIN_LENGTH", "12")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.AccessTokenExpiry != 24*time.Hour {
		t.Errorf("AccessTokenExpiry: got %v, want 24h", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Auth.OtpTTL != 2*time.Minute {
		t.Errorf("OtpTTL: got %v, want 2m", cfg.Auth.OtpTTL)
	}
	if cfg.Auth.PasswordMinLen != 12 {
		t.Errorf("PasswordMinLen: got %d, want 12", cfg.Auth.PasswordMinLen)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want error for missing JWT_SECRET")
	}
}

func TestLoad_WeakJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "short")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want error for weak JWT_SECRET")
	}
}

func TestLoad_ProductionRequiresStrongSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENV", "production")
	os.Setenv("JWT_SECRET", "only-twenty-chars!!!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want error for short production secret")
	}
}
