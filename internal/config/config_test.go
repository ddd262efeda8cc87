package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(MapLookup(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Run.Mode != "strict" || cfg.Run.FailurePolicy != "validate_raw" {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if cfg.Run.ChunkSize != 1000 || cfg.Run.MaxConcurrent != 4 {
		t.Errorf("Run sizes = %+v", cfg.Run)
	}
	if cfg.Upload.MaxFileSize != 104857600 {
		t.Errorf("Upload.MaxFileSize = %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Database.Enabled() {
		t.Error("database should be disabled without DATABASE_URL")
	}
	if cfg.Retention.MaxAge != 7*24*time.Hour {
		t.Errorf("Retention.MaxAge = %v", cfg.Retention.MaxAge)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RUN_MODE", "lenient")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Run.Mode != "lenient" || cfg.Logging.Level != "debug" {
		t.Errorf("overrides not applied: %s", cfg)
	}
}

func TestLoad_Values(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(*testing.T, *Config)
	}{
		{
			name: "alternate database variable",
			env:  map[string]string{"DB_URL": "postgres://localhost/alt"},
			check: func(t *testing.T, c *Config) {
				if c.Database.URL != "postgres://localhost/alt" || !c.Database.Enabled() {
					t.Errorf("Database = %+v", c.Database)
				}
			},
		},
		{
			name: "durations",
			env:  map[string]string{"SERVER_READ_TIMEOUT": "45s", "RUN_MAX_WAIT": "1m30s"},
			check: func(t *testing.T, c *Config) {
				if c.Server.ReadTimeout != 45*time.Second || c.Run.MaxWait != 90*time.Second {
					t.Errorf("ReadTimeout = %v, MaxWait = %v", c.Server.ReadTimeout, c.Run.MaxWait)
				}
			},
		},
		{
			name: "size with unit",
			env:  map[string]string{"UPLOAD_MAX_FILE_SIZE": "20MB"},
			check: func(t *testing.T, c *Config) {
				if c.Upload.MaxFileSize != 20<<20 {
					t.Errorf("MaxFileSize = %d", c.Upload.MaxFileSize)
				}
			},
		},
		{
			name: "comma separated slice",
			env:  map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8, 172.16.0.0/12 ,"},
			check: func(t *testing.T, c *Config) {
				want := []string{"10.0.0.0/8", "172.16.0.0/12"}
				if len(c.Security.TrustedProxies) != 2 || c.Security.TrustedProxies[1] != want[1] {
					t.Errorf("TrustedProxies = %v, want %v", c.Security.TrustedProxies, want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(MapLookup(tt.env))
			if err != nil {
				t.Fatalf("LoadFrom() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "bad integer", env: map[string]string{"SERVER_PORT": "http"}, wantMsg: "SERVER_PORT"},
		{name: "port out of range", env: map[string]string{"SERVER_PORT": "70000"}, wantMsg: "must be 1-65535"},
		{name: "bad mode", env: map[string]string{"RUN_MODE": "loose"}, wantMsg: "RUN_MODE"},
		{name: "bad policy", env: map[string]string{"RUN_FAILURE_POLICY": "ignore"}, wantMsg: "RUN_FAILURE_POLICY"},
		{name: "bad error format", env: map[string]string{"OUTPUT_ERROR_FORMAT": "xml"}, wantMsg: "OUTPUT_ERROR_FORMAT"},
		{name: "bad proxy", env: map[string]string{"TRUSTED_PROXIES": "10.0.0.1/40"}, wantMsg: "not a CIDR"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "verbose"}, wantMsg: "LOG_LEVEL"},
		{
			name:    "pool bounds checked only with a database",
			env:     map[string]string{"DATABASE_URL": "postgres://x", "DB_MAX_CONNS": "1", "DB_MIN_CONNS": "5"},
			wantMsg: "DB_MAX_CONNS (1) must be >= DB_MIN_CONNS (5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(MapLookup(tt.env))
			if err == nil {
				t.Fatal("LoadFrom() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg, err := LoadFrom(MapLookup(nil))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Port = 0
	cfg.Run.ChunkSize = 0
	cfg.Logging.Format = "xml"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "RUN_CHUNK_SIZE", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestString_MasksDatabase(t *testing.T) {
	cfg, err := LoadFrom(MapLookup(map[string]string{"DATABASE_URL": "postgres://user:secret@db/x"}))
	if err != nil {
		t.Fatal(err)
	}
	if s := cfg.String(); strings.Contains(s, "secret") || !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s", s)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8081}
	if got := c.Addr(); got != "127.0.0.1:8081" {
		t.Errorf("Addr() = %q", got)
	}
}
