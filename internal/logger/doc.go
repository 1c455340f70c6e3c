// Package logger provides a simple, thread-safe leveled logger.
//
// Each entry carries a timestamp, level, optional scope and message. The
// scope is free-form: worker pools pass "pool/worker-N", jobs pass the
// trace id of their ctxchain.
//
// # Basic Usage
//
//	logger.Info("", "Application started")
//	logger.Info("pool/worker-0", "worker exited")
//	logger.Error(traceID, "digest failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("pool", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered. ParseLevel maps the
// strings used in config files ("debug", "info", "warn", "error").
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
package logger
