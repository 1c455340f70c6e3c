// Package main is the entry point for threadkit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"threadkit/internal/api"
	"threadkit/internal/collect"
	"threadkit/internal/config"
	"threadkit/internal/ctxchain"
	"threadkit/internal/digest"
	"threadkit/internal/events"
	"threadkit/internal/logger"
	"threadkit/internal/metrics"
	"threadkit/internal/worker"
)

var (
	version = "dev"
)

// flags はコマンドラインで指定された値
type flags struct {
	configFile string
	workers    int
	algorithm  string
	logLevel   string
	files      bool
	serverMode bool
	addr       string
}

func main() {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.IntVar(&f.workers, "workers", 0, "ワーカー数 (0で設定ファイルまたはCPU数)")
	flag.StringVar(&f.algorithm, "algo", "", "ハッシュアルゴリズム (md5, sha1, sha256, sha512)")
	flag.StringVar(&f.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.BoolVar(&f.files, "files", false, "引数をファイルパスとして扱う")
	flag.BoolVar(&f.serverMode, "server", false, "API サーバーモードで起動")
	flag.StringVar(&f.addr, "addr", "", "サーバーアドレス (例: :8080)")
	showVersion := flag.Bool("version", false, "バージョンを表示")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `threadkit - worker pool backed hashing utility

Usage:
  threadkit [options] [inputs...]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 文字列のハッシュを計算
  threadkit hello world

  # ファイルのハッシュを 8 ワーカーで計算
  threadkit --files --workers 8 --algo sha256 *.go

  # API サーバーモードで起動
  threadkit --server --addr :3000
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("threadkit version %s\n", version)
		return
	}

	cfg, err := buildConfig(f)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}
	logger.Default.SetLevel(cfg.LogLevel)

	ctx, cancel := signalContext()
	defer cancel()

	if f.serverMode {
		if err := runServer(ctx, cfg); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := runDigest(ctx, cfg, flag.Args(), f.files, os.Stdout); err != nil {
		logger.Error("", "実行エラー: %v", err)
		os.Exit(1)
	}
}

// buildConfig は設定ファイルとフラグから実行時設定を構築する
func buildConfig(f flags) (config.Config, error) {
	cfg := config.Default()

	if f.configFile != "" {
		fileConfig, err := config.LoadFile(f.configFile)
		if err != nil {
			return cfg, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, fmt.Errorf("設定検証エラー: %w", err)
		}
		cfg, err = fileConfig.ToConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	}

	// フラグでオーバーライド
	override := config.FileConfig{
		Log:  config.LogConfig{Level: f.logLevel},
		Hash: config.HashConfig{Algorithm: f.algorithm},
	}
	if err := override.Validate(); err != nil {
		return cfg, err
	}
	if f.workers < 0 {
		return cfg, fmt.Errorf("workers must be non-negative")
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.algorithm != "" {
		cfg.Algorithm = f.algorithm
	}
	if f.logLevel != "" {
		cfg.LogLevel, _ = logger.ParseLevel(f.logLevel)
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}

	return cfg, nil
}

// signalContext は SIGINT/SIGTERM でキャンセルされるコンテキストを返す
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			logger.Info("", "中断シグナルを受信、終了中...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// runDigest は引数をプールでハッシュ化し、結果を out に書き出す
func runDigest(ctx context.Context, cfg config.Config, args []string, asFiles bool, out io.Writer) error {
	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: cfg.Workers,
		Name:       cfg.PoolName,
	})
	defer pool.Stop()

	inputs := collect.SliceToSlice(args, func(arg string) (digest.Input, bool) {
		if asFiles {
			return digest.Input{Name: arg, Path: arg}, true
		}
		return digest.Input{Name: arg, Data: []byte(arg)}, true
	})

	ctx = ctxchain.NewContext(ctx, ctxchain.Wrap(ctxchain.New()))
	results, err := digest.New(pool, digest.Config{Algorithm: cfg.Algorithm}).Run(ctx, inputs)
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(out, "%s: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Fprintf(out, "%s  %s\n", r.Digest, r.Name)
	}
	failed := collect.Filter(results, func(r digest.Result) bool { return r.Error != "" })
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d inputs failed", len(failed), len(results))
	}
	return nil
}

// runServer は API サーバーを起動する
func runServer(ctx context.Context, cfg config.Config) error {
	m := metrics.New()
	bus := events.NewBus()
	defer bus.Close()

	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: cfg.Workers,
		Name:       cfg.PoolName,
		Metrics:    m,
		Events:     bus,
	})
	defer pool.Stop()

	collector := metrics.NewCollector(cfg.MetricsNamespace, m)
	if err := collector.WatchPool(pool.Name(), pool); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	if err := collector.WatchEvents(bus); err != nil {
		return fmt.Errorf("failed to register event metrics: %w", err)
	}

	server := api.NewServer(cfg.Addr, api.Options{
		Pool:              pool,
		Runner:            digest.New(pool, digest.Config{Algorithm: cfg.Algorithm}).WithEvents(bus),
		Metrics:           m,
		Collector:         collector,
		Events:            bus,
		BroadcastInterval: cfg.BroadcastInterval,
	})
	return server.Start(ctx)
}
