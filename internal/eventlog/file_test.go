package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLog_MissingFileIsEmpty(t *testing.T) {
	log, err := ReadLog(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.NotNil(t, log.Events)
	assert.Empty(t, log.Events)
}

func TestReadLog_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"events":[`), 0o644))

	_, err := ReadLog(path)
	require.Error(t, err)
	assert.True(t, IsCorruption(err))
	assert.Contains(t, err.Error(), path)
}

func TestWriteLog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.json")
	in := &EventLog{Events: []EventRecord{
		{Timestamp: "2026-01-02T15:04:05.000000Z", Event: "a", Data: []byte(`{"k":[1,2]}`)},
	}}

	require.NoError(t, WriteLog(path, in))

	out, err := ReadLog(path)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "a", out.Events[0].Event)
	assert.JSONEq(t, `{"k":[1,2]}`, string(out.Events[0].Data))
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "log.json", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.NoError(t, CopyFileAtomic(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	assert.Error(t, CopyFileAtomic(filepath.Join(dir, "missing"), dst))
}
