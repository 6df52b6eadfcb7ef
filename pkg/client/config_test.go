package client

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(Credentials{Username: "u", Password: "p"})

	if cfg.BaseURL != "http://api.summarify.io" {
		t.Errorf("BaseURL = %q, want http://api.summarify.io", cfg.BaseURL)
	}
	if cfg.Timeout != 3600*time.Second {
		t.Errorf("Timeout = %v, want 3600s", cfg.Timeout)
	}
	if cfg.GatewayBackoff != 600*time.Second {
		t.Errorf("GatewayBackoff = %v, want 600s", cfg.GatewayBackoff)
	}
	if cfg.RetryPolicy() != DefaultRetryPolicy() {
		t.Errorf("RetryPolicy() = %+v, want %+v", cfg.RetryPolicy(), DefaultRetryPolicy())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SUMAPI_USERNAME", "user")
	t.Setenv("SUMAPI_PASSWORD", "secret")
	t.Setenv("SUMAPI_BASE_URL", "http://localhost:8000")
	t.Setenv("SUMAPI_USER_AGENT", "batch-job/2.1")
	t.Setenv("SUMAPI_TIMEOUT", "90s")
	t.Setenv("SUMAPI_GATEWAY_BACKOFF", "2m")
	t.Setenv("SUMAPI_RATE_LIMIT", "2.5")
	t.Setenv("SUMAPI_CACHE_TTL", "1h")
	t.Setenv("SUMAPI_TRACING", "true")
	t.Setenv("SUMAPI_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Redis == nil {
		t.Fatal("Redis = nil with SUMAPI_REDIS_ADDR set")
	}
	defer cfg.Redis.Close()

	if cfg.Credentials != (Credentials{Username: "user", Password: "secret"}) {
		t.Errorf("Credentials = %+v", cfg.Credentials)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.UserAgent != "batch-job/2.1" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
	if cfg.GatewayBackoff != 2*time.Minute {
		t.Errorf("GatewayBackoff = %v, want 2m", cfg.GatewayBackoff)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.RateLimit)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if !cfg.Tracing {
		t.Error("Tracing = false, want true")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		errorMsg string
	}{
		{
			name:     "missing credentials",
			env:      map[string]string{"SUMAPI_USERNAME": "", "SUMAPI_PASSWORD": ""},
			errorMsg: "invalid config",
		},
		{
			name:     "bad timeout",
			env:      map[string]string{"SUMAPI_TIMEOUT": "forever"},
			errorMsg: "SUMAPI_TIMEOUT",
		},
		{
			name:     "bad rate limit",
			env:      map[string]string{"SUMAPI_RATE_LIMIT": "fast"},
			errorMsg: "SUMAPI_RATE_LIMIT",
		},
		{
			name:     "bad tracing flag",
			env:      map[string]string{"SUMAPI_TRACING": "maybe"},
			errorMsg: "SUMAPI_TRACING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SUMAPI_USERNAME", "user")
			t.Setenv("SUMAPI_PASSWORD", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("LoadConfig() error = %v, want it to mention %q", err, tt.errorMsg)
			}
		})
	}
}
