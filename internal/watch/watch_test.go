package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startWatcher(t *testing.T, root string) (<-chan struct{}, context.CancelFunc) {
	t.Helper()

	changes := make(chan struct{}, 64)
	w, err := New(root, zap.NewNop(), func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx) //nolint:errcheck

	t.Cleanup(func() {
		cancel()
		w.Close()
	})
	return changes, cancel
}

func waitChange(t *testing.T, changes <-chan struct{}) {
	t.Helper()
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcherSeesWrite(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a"), 0o644))

	changes, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(path, []byte("package a // edited"), 0o644))
	waitChange(t, changes)
}

func TestWatcherSeesCreateAndRemove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	changes, _ := startWatcher(t, root)

	path := filepath.Join(root, "new.go")
	require.NoError(t, os.WriteFile(path, []byte("package n"), 0o644))
	waitChange(t, changes)

	require.NoError(t, os.Remove(path))
	waitChange(t, changes)
}

func TestWatcherIgnoresDotfiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	changes, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".tmpfile"), []byte("x"), 0o644))

	select {
	case <-changes:
		t.Fatal("dotfile write must not notify")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	changes, _ := startWatcher(t, root)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitChange(t, changes)

	// Give the watcher a beat to register the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "p.go"), []byte("package p"), 0o644))
	waitChange(t, changes)
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w, err := New(root, zap.NewNop(), func() {})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
