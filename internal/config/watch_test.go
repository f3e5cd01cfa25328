package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9001\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	cfg, err := w.Load()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var port atomic.Int64
	require.NoError(t, w.Watch(ctx, func(c *Config) {
		port.Store(int64(c.Server.Port))
	}))

	// Invalid configs keep the previous one.
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9002\n"), 0o600))

	require.Eventually(t, func() bool {
		return port.Load() == 9002
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 9002, w.Current().Server.Port)
}

func TestNewWatcher_EmptyPath(t *testing.T) {
	_, err := NewWatcher("", nil)
	assert.Error(t, err)
}
