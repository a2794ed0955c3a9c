package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.ChallengeTTL != 5*time.Minute {
		t.Fatalf("expected 5m challenge ttl, got %s", cfg.Auth.ChallengeTTL)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7d token ttl, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Fatalf("expected mysql driver, got %s", cfg.Database.Driver)
	}
	if cfg.Storage.Enabled() {
		t.Fatalf("storage should be disabled by default")
	}
}

func TestLoadJSONWithDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "app": {"http_addr": ":9090"},
  "auth": {"jwt_secret": "file-secret", "challenge_ttl": "2m", "token_ttl": "1h"},
  "audit": {"workers": 4}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9090" {
		t.Fatalf("unexpected addr %s", cfg.App.HTTPAddr)
	}
	if cfg.Auth.ChallengeTTL != 2*time.Minute || cfg.Auth.TokenTTL != time.Hour {
		t.Fatalf("unexpected ttl: %s %s", cfg.Auth.ChallengeTTL, cfg.Auth.TokenTTL)
	}
	if cfg.Audit.Workers != 4 || cfg.Audit.Capacity != 1000 {
		t.Fatalf("unexpected audit config: %+v", cfg.Audit)
	}
	if cfg.App.LogLevel != "info" {
		t.Fatalf("default log level not applied: %s", cfg.App.LogLevel)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
database:
  driver: postgres
  dsn: "host=localhost user=app dbname=taskhub sslmode=disable"
auth:
  challenge_ttl: 90s
storage:
  bucket: evidence
  endpoint: https://example.r2.cloudflarestorage.com
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Fatalf("expected postgres, got %s", cfg.Database.Driver)
	}
	if cfg.Auth.ChallengeTTL != 90*time.Second {
		t.Fatalf("unexpected challenge ttl %s", cfg.Auth.ChallengeTTL)
	}
	if !cfg.Storage.Enabled() || cfg.Storage.PresignTTL != 900 {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("AUTH_CHALLENGE_TTL", "10m")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "tasks")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("jwt secret not overridden: %s", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.ChallengeTTL != 10*time.Minute {
		t.Fatalf("challenge ttl not overridden: %s", cfg.Auth.ChallengeTTL)
	}
	if !strings.Contains(cfg.Database.DSN, "db.internal:3306") || !strings.Contains(cfg.Database.DSN, "/tasks") {
		t.Fatalf("dsn not rebuilt: %s", cfg.Database.DSN)
	}
}
