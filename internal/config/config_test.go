package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"threadkit/internal/logger"
)

func TestLoadFileYAML(t *testing.T) {
	content := `
pool:
  workers: 8
  name: hasher
log:
  level: debug
hash:
  algorithm: sha256
server:
  addr: ":9090"
  broadcast_interval: 500ms
  metrics_namespace: tk
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pool.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Pool.Workers)
	}
	if cfg.Pool.Name != "hasher" {
		t.Errorf("expected name 'hasher', got '%s'", cfg.Pool.Name)
	}
	if cfg.Server.BroadcastInterval != "500ms" {
		t.Errorf("expected broadcast interval '500ms', got '%s'", cfg.Server.BroadcastInterval)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "pool": {"workers": 3},
  "hash": {"algorithm": "sha1"}
}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pool.Workers != 3 {
		t.Errorf("expected workers 3, got %d", cfg.Pool.Workers)
	}
	if cfg.Hash.Algorithm != "sha1" {
		t.Errorf("expected algorithm 'sha1', got '%s'", cfg.Hash.Algorithm)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(tmpFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := LoadFile(tmpFile)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(tmpFile, []byte("pool: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	if _, err := LoadFile(tmpFile); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestToConfig(t *testing.T) {
	cfg := &FileConfig{
		Pool:   PoolConfig{Workers: 6, Name: "p"},
		Log:    LogConfig{Level: "warn"},
		Hash:   HashConfig{Algorithm: "sha512"},
		Server: ServerConfig{Addr: ":1234", BroadcastInterval: "2s", MetricsNamespace: "ns"},
	}

	c, err := cfg.ToConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if c.Workers != 6 {
		t.Errorf("expected workers 6, got %d", c.Workers)
	}
	if c.PoolName != "p" {
		t.Errorf("expected pool name 'p', got '%s'", c.PoolName)
	}
	if c.LogLevel != logger.LevelWarn {
		t.Errorf("expected WARN, got %s", c.LogLevel)
	}
	if c.Algorithm != "sha512" {
		t.Errorf("expected sha512, got %s", c.Algorithm)
	}
	if c.Addr != ":1234" {
		t.Errorf("expected :1234, got %s", c.Addr)
	}
	if c.BroadcastInterval != 2*time.Second {
		t.Errorf("expected 2s, got %v", c.BroadcastInterval)
	}
	if c.MetricsNamespace != "ns" {
		t.Errorf("expected ns, got %s", c.MetricsNamespace)
	}
}

func TestToConfigDefaults(t *testing.T) {
	c, err := (&FileConfig{}).ToConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if c.Workers != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), c.Workers)
	}
	if c.Algorithm != "md5" {
		t.Errorf("expected md5, got %s", c.Algorithm)
	}
	if c.LogLevel != logger.LevelInfo {
		t.Errorf("expected INFO, got %s", c.LogLevel)
	}
}

func TestToConfigInvalidInterval(t *testing.T) {
	for _, interval := range []string{"invalid", "-1s"} {
		cfg := &FileConfig{Server: ServerConfig{BroadcastInterval: interval}}
		if _, err := cfg.ToConfig(); err == nil {
			t.Errorf("expected error for interval %q", interval)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name:     "negative workers",
			config:   FileConfig{Pool: PoolConfig{Workers: -1}},
			hasError: true,
		},
		{
			name:     "unknown log level",
			config:   FileConfig{Log: LogConfig{Level: "verbose"}},
			hasError: true,
		},
		{
			name:     "unknown algorithm",
			config:   FileConfig{Hash: HashConfig{Algorithm: "crc32"}},
			hasError: true,
		},
		{
			name:     "known algorithm",
			config:   FileConfig{Hash: HashConfig{Algorithm: "SHA256"}},
			hasError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
