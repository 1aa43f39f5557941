package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcher_FiresOnContentChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "veriflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	changed := make(chan string, 4)
	w := NewWatcher(path, 20*time.Millisecond, zap.NewNop())
	w.OnChange(func(p string) { changed <- p })

	w.Start(context.Background())
	defer w.Stop()

	// 启动时的既有文件不触发回调
	select {
	case <-changed:
		t.Fatal("unexpected change event for unchanged file")
	case <-time.After(100 * time.Millisecond):
	}

	// 写入不同长度的内容，大小变化保证被轮询发现
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	select {
	case p := <-changed:
		assert.Equal(t, path, p)
	case <-time.After(2 * time.Second):
		t.Fatal("change event not delivered")
	}
}

func TestWatcher_FiresWhenFileCreatedLater(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "veriflow.yaml")

	changed := make(chan string, 4)
	w := NewWatcher(path, 20*time.Millisecond, zap.NewNop())
	w.OnChange(func(p string) { changed <- p })

	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: redis\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("creation event not delivered")
	}
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "veriflow.yaml")
	w := NewWatcher(path, 20*time.Millisecond, zap.NewNop())

	w.Stop()
	w.Start(context.Background())
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}

func TestWatcher_NoEventsAfterStop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "veriflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	var fired atomic.Int64
	w := NewWatcher(path, 20*time.Millisecond, zap.NewNop())
	w.OnChange(func(string) { fired.Add(1) })

	w.Start(context.Background())
	w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("a: 22\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
