package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CLIENT_CACHE_PATH", "")
	t.Setenv("SYNC_PAGE_SIZE", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ClientCachePath != "data/client_cache.db" {
		t.Fatalf("expected default cache path, got %s", cfg.ClientCachePath)
	}
	if cfg.SyncPageSize != 100 {
		t.Fatalf("expected default sync page size, got %d", cfg.SyncPageSize)
	}
	if cfg.SyncStaleAfter != time.Hour {
		t.Fatalf("expected default stale threshold, got %s", cfg.SyncStaleAfter)
	}
	if cfg.SyncOnStartup {
		t.Fatalf("expected startup sync disabled by default")
	}
	if cfg.UpstreamTimeout != 30*time.Second {
		t.Fatalf("expected default upstream timeout, got %s", cfg.UpstreamTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CLIENT_CACHE_PATH", "/var/lib/portal/cache.db")
	t.Setenv("SYNC_PAGE_SIZE", "25")
	t.Setenv("SYNC_PAGE_DELAY", "2s")
	t.Setenv("SYNC_STALE_AFTER", "30m")
	t.Setenv("SYNC_ON_STARTUP", "true")
	t.Setenv("UPSTREAM_BASE_URL", "https://api.practice.example.com")
	t.Setenv("AVAILABILITY_TTL", "5m")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.ClientCachePath != "/var/lib/portal/cache.db" {
		t.Fatalf("expected cache path override, got %s", cfg.ClientCachePath)
	}
	if cfg.SyncPageSize != 25 {
		t.Fatalf("expected page size override, got %d", cfg.SyncPageSize)
	}
	if cfg.SyncPageDelay != 2*time.Second {
		t.Fatalf("expected page delay override, got %s", cfg.SyncPageDelay)
	}
	if cfg.SyncStaleAfter != 30*time.Minute {
		t.Fatalf("expected stale threshold override, got %s", cfg.SyncStaleAfter)
	}
	if !cfg.SyncOnStartup {
		t.Fatalf("expected startup sync enabled")
	}
	if cfg.UpstreamBaseURL != "https://api.practice.example.com" {
		t.Fatalf("expected upstream base url override, got %s", cfg.UpstreamBaseURL)
	}
	if cfg.AvailabilityTTL != 5*time.Minute {
		t.Fatalf("expected availability ttl override, got %s", cfg.AvailabilityTTL)
	}
}
