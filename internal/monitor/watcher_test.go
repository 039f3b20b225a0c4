package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedlog/internal/testutil"
)

func TestWatcher_TriggersOnPrimaryWrite(t *testing.T) {
	path := testutil.LogPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	w, err := NewWatcher(path, 10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	testutil.WriteFile(t, path, testutil.EmptyLog)

	select {
	case <-w.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger after writing the primary")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := testutil.LogPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	w, err := NewWatcher(path, 10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	testutil.WriteFile(t, path+".backup", testutil.EmptyLog)
	testutil.WriteFile(t, filepath.Join(filepath.Dir(path), "other.json"), "{}")

	select {
	case <-w.Triggers():
		t.Fatal("unexpected trigger for unrelated files")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "log.json"), 0, nil)
	require.NoError(t, err)
	w.Stop()
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "absent", "log.json"), 0, nil)
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background()))
	w.Stop()
}
