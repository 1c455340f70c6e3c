// Package config loads threadkit settings from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"threadkit/internal/hashutil"
	"threadkit/internal/logger"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Hash   HashConfig   `yaml:"hash" json:"hash"`
	Server ServerConfig `yaml:"server" json:"server"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Workers int    `yaml:"workers" json:"workers"`
	Name    string `yaml:"name" json:"name"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// HashConfig はハッシュ設定
type HashConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// ServerConfig は API サーバー設定
type ServerConfig struct {
	Addr              string `yaml:"addr" json:"addr"`
	BroadcastInterval string `yaml:"broadcast_interval" json:"broadcast_interval"`
	MetricsNamespace  string `yaml:"metrics_namespace" json:"metrics_namespace"`
}

// Config は検証・変換済みの実行時設定
type Config struct {
	Workers           int
	PoolName          string
	LogLevel          logger.Level
	Algorithm         string
	Addr              string
	BroadcastInterval time.Duration
	MetricsNamespace  string
}

// Default はデフォルト設定を返す
func Default() Config {
	return Config{
		Workers:           runtime.NumCPU(),
		PoolName:          "threadkit",
		LogLevel:          logger.LevelInfo,
		Algorithm:         hashutil.DefaultAlgorithm,
		Addr:              ":8080",
		BroadcastInterval: time.Second,
		MetricsNamespace:  "threadkit",
	}
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if f.Hash.Algorithm != "" && !hashutil.Supported(f.Hash.Algorithm) {
		return fmt.Errorf("hash.algorithm must be one of %v", hashutil.Algorithms())
	}

	return nil
}

// ToConfig は FileConfig を実行時設定に変換する
// 未指定の項目はデフォルト値のまま残る。
func (f *FileConfig) ToConfig() (Config, error) {
	config := Default()

	if f.Pool.Workers > 0 {
		config.Workers = f.Pool.Workers
	}
	if f.Pool.Name != "" {
		config.PoolName = f.Pool.Name
	}

	level, err := logger.ParseLevel(f.Log.Level)
	if err != nil {
		return config, err
	}
	config.LogLevel = level

	if f.Hash.Algorithm != "" {
		config.Algorithm = f.Hash.Algorithm
	}

	if f.Server.Addr != "" {
		config.Addr = f.Server.Addr
	}
	if f.Server.BroadcastInterval != "" {
		d, err := time.ParseDuration(f.Server.BroadcastInterval)
		if err != nil {
			return config, fmt.Errorf("invalid broadcast interval: %w", err)
		}
		if d <= 0 {
			return config, fmt.Errorf("broadcast interval must be positive: %s", d)
		}
		config.BroadcastInterval = d
	}
	if f.Server.MetricsNamespace != "" {
		config.MetricsNamespace = f.Server.MetricsNamespace
	}

	return config, nil
}
