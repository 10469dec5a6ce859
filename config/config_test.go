package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ListenAddr() != ":3000" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr())
	}
	if cfg.SharedEvents() {
		t.Fatal("shared events need redis")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"PORT":                    "8080",
		"STORE_BACKEND":           " Tables ",
		"DB_MAX_CONNS":            "25",
		"TASKS_CACHE_TTL":         "2m",
		"EVENT_WORKERS":           "8",
		"DEBUG":                   "true",
		"AUTH_MODE":               "HS256",
		"REDIS_CONNECTION_STRING": "redis://localhost:6379",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreBackend != BackendTables || cfg.DBMaxConns != 25 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.TasksCacheTTL != 2*time.Minute || cfg.EventWorkers != 8 || !cfg.Debug {
		t.Fatalf("typed overrides not applied: %+v", cfg)
	}
	if cfg.AuthMode != AuthHS256 {
		t.Fatalf("auth mode not normalised: %q", cfg.AuthMode)
	}
	if !cfg.SharedEvents() {
		t.Fatal("redis with the default channel should share events")
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"DB_MAX_CONNS":     "many",
		"EVENT_BUFFER":     "1.5",
		"TASKS_CACHE_TTL":  "soon",
		"SHUTDOWN_TIMEOUT": "10",
		"SEED_ON_INIT":     "maybe",
	} {
		cfg := Default()
		err := cfg.applyEnv(envMap(map[string]string{key: val}))
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Fatalf("%s=%s: expected error naming the key, got %v", key, val, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "backend", mutate: func(c *Config) { c.StoreBackend = "mysql" }, want: "STORE_BACKEND"},
		{name: "tablesNeedConn", mutate: func(c *Config) { c.StoreBackend = BackendTables }, want: "missing storage config"},
		{name: "queueNeedsConn", mutate: func(c *Config) { c.TaskEventsQueue = "events" }, want: "TASK_EVENTS_QUEUE"},
		{name: "auth0", mutate: func(c *Config) { c.AuthMode = AuthAuth0 }, want: "Auth0"},
		{name: "hs256", mutate: func(c *Config) { c.AuthMode = AuthHS256 }, want: "LOCAL_AUTH_SHARED_SECRET"},
		{name: "authMode", mutate: func(c *Config) { c.AuthMode = "basic" }, want: "AUTH_MODE"},
		{name: "workers", mutate: func(c *Config) { c.EventWorkers = 0 }, want: "EVENT_WORKERS"},
		{name: "ttl", mutate: func(c *Config) { c.TasksCacheTTL = -time.Second }, want: "TASKS_CACHE_TTL"},
		{name: "maxConns", mutate: func(c *Config) { c.DBMaxConns = 0 }, want: "DB_MAX_CONNS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadReadsFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kanban.toml")
	content := `
port = "4000"
database_url = "postgresql://file/kanban"
tasks_cache_ttl = "1m"
event_workers = 3
static_dir = "/srv/board"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configFile, path)
	t.Setenv("PORT", "5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Fatalf("env must override file, got port %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgresql://file/kanban" || cfg.StaticDir != "/srv/board" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TasksCacheTTL != time.Minute || cfg.EventWorkers != 3 {
		t.Fatalf("typed file values not applied: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(configFile, filepath.Join(t.TempDir(), "absent.toml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
