package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ValidLog is a two-record pretty-printed log.
const ValidLog = `{
  "events": [
    {
      "timestamp": "2026-01-02T15:04:05.000000Z",
      "event": "workflow_started",
      "data": {
        "id": 1
      }
    },
    {
      "timestamp": "2026-01-02T15:04:06.000000Z",
      "event": "workflow_done",
      "data": {
        "id": 1
      }
    }
  ]
}
`

// EmptyLog is a freshly cleared log.
const EmptyLog = "{\n  \"events\": []\n}\n"

// TruncatedLog ends in the middle of its second record.
const TruncatedLog = `{"events": [ {"timestamp":"t1","event":"a","data":{}}, {"timestamp":"t2","event":"b","data":{`

// TrailingGarbageLog is a valid document followed by junk.
const TrailingGarbageLog = `{"events": []}garbage`

// LogPath returns the primary log path inside a fresh temp dir.
func LogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "shared", "shared_context.json")
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content at path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
