package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := WatchFile(ctx, path, 10*time.Millisecond)

	select {
	case <-changed:
		t.Fatal("fired before the file changed")
	case <-time.After(50 * time.Millisecond):
	}

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("change not detected")
	}
}

func TestWatchFile_StopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	changed := WatchFile(ctx, path, 10*time.Millisecond)
	cancel()

	require.NoError(t, os.Remove(path))
	select {
	case <-changed:
		t.Fatal("fired after the context was canceled")
	case <-time.After(100 * time.Millisecond):
	}
}
