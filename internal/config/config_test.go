package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "PMS_TIMEOUT", "CACHE_BACKEND", "CACHE_RECORD_PURGE_AFTER", "PMS_BASE_URL", "TRUST_PROXY_HEADERS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.PMSTimeout != 10*time.Second {
		t.Fatalf("expected 10s upstream timeout, got %s", cfg.PMSTimeout)
	}
	if cfg.ScheduleTTL != 24*time.Hour || cfg.RecordTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl defaults: schedule=%s record=%s", cfg.ScheduleTTL, cfg.RecordTTL)
	}
	if cfg.RecordPurgeAfter != 48*time.Hour {
		t.Fatalf("expected 48h purge, got %s", cfg.RecordPurgeAfter)
	}
	if cfg.UseRedisCache() {
		t.Fatalf("expected memory cache by default")
	}
	if cfg.TrustProxyHeaders {
		t.Fatalf("proxy headers must not be trusted by default")
	}
	if cfg.PMSBaseURL != "https://unify.kolla.dev/dental/v1" {
		t.Fatalf("unexpected default base url %s", cfg.PMSBaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("PMS_BASE_URL", "https://pms.example.com/v1/")
	t.Setenv("PMS_TIMEOUT", "3s")
	t.Setenv("PMS_RATE_LIMIT", "2.5")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CACHE_SWEEP_INTERVAL", "15m")
	t.Setenv("INTERACTION_QUEUE_SIZE", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://front.example.com, ,https://admin.example.com")
	t.Setenv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization")
	t.Setenv("CORS_MAX_AGE", "1m")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("HTTP_RATE_LIMIT_SWEEP", "30s")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.PMSBaseURL != "https://pms.example.com/v1" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PMSBaseURL)
	}
	if cfg.PMSTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.PMSTimeout)
	}
	if cfg.PMSRateLimit != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.PMSRateLimit)
	}
	if !cfg.UseRedisCache() || !cfg.RedisTLS {
		t.Fatalf("expected redis backend with tls")
	}
	if cfg.CacheSweepInterval != 15*time.Minute {
		t.Fatalf("expected sweep override, got %s", cfg.CacheSweepInterval)
	}
	if cfg.InteractionQueueSize != 12 {
		t.Fatalf("expected queue override, got %d", cfg.InteractionQueueSize)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if len(cfg.CORSAllowedHeaders) != 2 || cfg.CORSAllowedHeaders[1] != "Authorization" {
		t.Fatalf("unexpected headers %v", cfg.CORSAllowedHeaders)
	}
	if cfg.CORSMaxAge != time.Minute {
		t.Fatalf("expected cors max age override, got %s", cfg.CORSMaxAge)
	}
	if !cfg.TrustProxyHeaders {
		t.Fatalf("expected proxy headers to be trusted")
	}
	if cfg.RateLimitSweep != 30*time.Second {
		t.Fatalf("expected limiter sweep override, got %s", cfg.RateLimitSweep)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PMS_BURST", "lots")
	t.Setenv("PMS_TIMEOUT", "soon")
	cfg := Load()
	if cfg.PMSBurst != 10 {
		t.Fatalf("expected default burst, got %d", cfg.PMSBurst)
	}
	if cfg.PMSTimeout != 10*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.PMSTimeout)
	}
}
