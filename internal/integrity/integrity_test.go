package integrity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedlog/internal/eventlog"
	"github.com/roach88/sharedlog/internal/testutil"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"fresh empty log", `{"events":[]}`, true},
		{"pretty printed log", testutil.ValidLog, true},
		{"cleared log", testutil.EmptyLog, true},
		{"empty file", ``, false},
		{"truncated", testutil.TruncatedLog, false},
		{"missing closing brackets", `{"events": [{"timestamp":"t","event":"a","data":{}}`, false},
		{"trailing garbage", testutil.TrailingGarbageLog, false},
		{"not json", "hello", false},
		{"wrong shape", `{"events": {"a": 1}}`, false},
		{"no events key", `{"items": []}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "log.json")
			testutil.WriteFile(t, path, tt.content)
			assert.Equal(t, tt.want, Validate(path))
		})
	}
}

func TestValidate_MissingFile(t *testing.T) {
	assert.False(t, Validate(filepath.Join(t.TempDir(), "absent.json")))
}

func TestValidate_Directory(t *testing.T) {
	assert.False(t, Validate(t.TempDir()))
}

func TestValidate_PublishedLog(t *testing.T) {
	path := testutil.LogPath(t)
	s, err := eventlog.Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, "workflow_started", map[string]any{"id": 1, "tags": []string{"x"}}))
	require.NoError(t, s.Publish(ctx, "note", "free text with \"quotes\""))
	assert.True(t, Validate(path))

	require.NoError(t, s.ClearEvents(ctx))
	assert.True(t, Validate(path))
}

func TestCheck_Report(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	testutil.WriteFile(t, path, testutil.ValidLog)

	r := Check(path)
	assert.True(t, r.Valid)
	assert.True(t, r.Exists)
	assert.Equal(t, 2, r.Events)
	assert.Equal(t, int64(len(testutil.ValidLog)), r.Size)
	assert.Empty(t, r.Reason)
}

func TestCheck_MissingFile(t *testing.T) {
	r := Check(filepath.Join(t.TempDir(), "absent.json"))
	assert.False(t, r.Valid)
	assert.False(t, r.Exists)
	assert.Equal(t, "file does not exist", r.Reason)
}

func TestCheck_SyntaxErrorReason(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	testutil.WriteFile(t, path, testutil.TrailingGarbageLog)

	r := Check(path)
	assert.False(t, r.Valid)
	assert.Contains(t, r.Reason, "trailing data")
}

func TestCheck_ShapeErrorNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	testutil.WriteFile(t, path, `{"events": 5}`)

	r := Check(path)
	assert.False(t, r.Valid)
	assert.Contains(t, r.Reason, "events")
}

func TestCheck_ElementShapeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	testutil.WriteFile(t, path, `{"events": [{"timestamp": "t", "event": "a"}, {"event": 7}]}`)

	r := Check(path)
	assert.False(t, r.Valid)
	assert.NotEmpty(t, r.Reason)
}

func TestCheck_AgreesWithStore(t *testing.T) {
	inputs := []string{
		`{"events":[]}`,
		`{"events":[{}]}`,
		`{"events":[{"timestamp":null,"event":null,"data":null}]}`,
		`{"events":[1]}`,
		`{"events":[null]}`,
		`{"events":[{"timestamp":"t","event":"a"},null]}`,
		`{"extra":true,"events":[]}`,
		testutil.TruncatedLog,
	}

	for _, in := range inputs {
		path := filepath.Join(t.TempDir(), "log.json")
		require.NoError(t, os.WriteFile(path, []byte(in), 0o644))

		_, err := eventlog.ReadLog(path)
		assert.Equal(t, err == nil, Validate(path), "input %q", in)
	}
}

func TestCheck_UnreadableIsNotCorruption(t *testing.T) {
	r := Check(t.TempDir())
	assert.False(t, r.Valid)
	assert.True(t, r.Exists)
	assert.False(t, r.Readable)
	assert.Contains(t, r.Reason, "read")
}
