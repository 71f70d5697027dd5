package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/torque/internal/config"
)

func shortLockConfig(timeout time.Duration) FileLockConfig {
	return FileLockConfig{LockTimeout: timeout, LockRetry: 10 * time.Millisecond}
}

func TestAcquireFileLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireFileLock(context.Background(), dir, FileLockConfig{})
	require.NoError(t, err)
	assert.True(t, lock.IsLocked())

	lock.Unlock()
	assert.False(t, lock.IsLocked())
	lock.Unlock()
}

func TestFileLockContention(t *testing.T) {
	dir := t.TempDir()

	held, err := AcquireFileLock(context.Background(), dir, shortLockConfig(time.Second))
	require.NoError(t, err)

	start := time.Now()
	_, err = AcquireFileLock(context.Background(), dir, shortLockConfig(100*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another instance")
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	held.Unlock()
	again, err := AcquireFileLock(context.Background(), dir, shortLockConfig(100*time.Millisecond))
	require.NoError(t, err)
	again.Unlock()
}

func TestLockConfigFromRejectsBadDuration(t *testing.T) {
	_, err := LockConfigFrom(configWithLock("soon", "10ms"))
	assert.Error(t, err)

	cfg, err := LockConfigFrom(configWithLock("", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultFileLockConfig(), cfg)
}

func configWithLock(timeout, retry string) config.StoreConfig {
	return config.StoreConfig{LockTimeout: timeout, LockRetry: retry}
}
