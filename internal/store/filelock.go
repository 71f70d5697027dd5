package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/harunnryd/torque/internal/config"
)

const lockFileName = "archive.lock"

// FileLock serializes archive writers across torque processes.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.Mutex
}

type FileLockConfig struct {
	LockTimeout time.Duration
	LockRetry   time.Duration
}

func DefaultFileLockConfig() FileLockConfig {
	lockTimeout, _ := config.DurationOrDefault(config.DefaultStoreLockTimeout, config.DefaultStoreLockTimeout)
	lockRetry, _ := config.DurationOrDefault(config.DefaultStoreLockRetry, config.DefaultStoreLockRetry)
	return FileLockConfig{LockTimeout: lockTimeout, LockRetry: lockRetry}
}

// LockConfigFrom reads lock timings from the store section, falling back to defaults.
func LockConfigFrom(cfg config.StoreConfig) (FileLockConfig, error) {
	timeout, err := config.DurationOrDefault(cfg.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return FileLockConfig{}, fmt.Errorf("store.lock_timeout: %w", err)
	}
	retry, err := config.DurationOrDefault(cfg.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return FileLockConfig{}, fmt.Errorf("store.lock_retry: %w", err)
	}
	return FileLockConfig{LockTimeout: timeout, LockRetry: retry}, nil
}

// AcquireFileLock blocks until the archive lock in dir is held, ctx ends, or the
// configured timeout passes.
func AcquireFileLock(ctx context.Context, dir string, cfg FileLockConfig) (*FileLock, error) {
	if cfg.LockTimeout <= 0 || cfg.LockRetry <= 0 {
		cfg = DefaultFileLockConfig()
	}
	lockPath := filepath.Join(dir, lockFileName)
	fl := &FileLock{fileLock: flock.New(lockPath), lockPath: lockPath}

	lockCtx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
	defer cancel()

	locked, err := fl.fileLock.TryLockContext(lockCtx, cfg.LockRetry)
	if err != nil {
		return nil, fmt.Errorf("archive %s is locked by another instance (timeout after %v): %w", dir, cfg.LockTimeout, err)
	}
	if !locked {
		return nil, fmt.Errorf("archive %s is locked by another instance", dir)
	}

	fl.acquiredAt = time.Now()
	slog.Debug("Archive lock acquired", "path", lockPath)
	return fl, nil
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		return
	}
	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release archive lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Debug("Archive lock released", "path", fl.lockPath, "held_duration_ms", time.Since(fl.acquiredAt).Milliseconds())
	}
	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.fileLock != nil
}
