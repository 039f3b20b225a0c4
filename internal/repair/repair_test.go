package repair

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedlog/internal/eventlog"
	"github.com/roach88/sharedlog/internal/integrity"
	"github.com/roach88/sharedlog/internal/testutil"
)

func TestRecover_Golden(t *testing.T) {
	tests := []struct {
		name     string
		kept     int
		complete bool
	}{
		{"truncated_minified", 1, false},
		{"truncated_pretty", 1, false},
		{"trailing_garbage", 1, false},
		{"brace_in_string", 1, false},
		{"extra_keys", 1, false},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := os.ReadFile(filepath.Join("testdata", tt.name+".json"))
			require.NoError(t, err)

			res, err := Recover(bytes.NewReader(input))
			require.NoError(t, err)
			assert.Equal(t, tt.kept, res.Kept)
			assert.Equal(t, tt.complete, res.Complete)
			assert.NotEmpty(t, res.Reason)

			out, err := eventlog.EncodeLog(res.Log)
			require.NoError(t, err)
			g.Assert(t, tt.name, out)

			_, err = eventlog.DecodeLog(out)
			assert.NoError(t, err, "recovered output must decode")
		})
	}
}

func TestRecover_OffsetEndsAfterLastRecord(t *testing.T) {
	input := testutil.TruncatedLog

	res, err := Recover(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, res.Kept)
	require.Positive(t, res.Offset)

	kept := input[:res.Offset]
	assert.True(t, strings.HasSuffix(kept, `"data":{}}`), "offset should land after record 1, got %q", kept)
}

func TestRecover_CompleteDocument(t *testing.T) {
	res, err := Recover(strings.NewReader(testutil.ValidLog))
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 2, res.Kept)
	assert.Equal(t, "workflow_done", res.Log.Events[1].Event)
}

func TestRecover_EmptyArray(t *testing.T) {
	res, err := Recover(strings.NewReader(testutil.EmptyLog))
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, 0, res.Kept)
	assert.NotNil(t, res.Log.Events)
}

func TestRecover_CutBeforeFirstRecord(t *testing.T) {
	res, err := Recover(strings.NewReader(`{"events": [`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Kept)
	assert.False(t, res.Complete)

	out, err := eventlog.EncodeLog(res.Log)
	require.NoError(t, err)
	assert.Equal(t, testutil.EmptyLog, string(out))
}

func TestRecover_StopsAtNullRecord(t *testing.T) {
	res, err := Recover(strings.NewReader(`{"events": [{"timestamp":"t1","event":"a","data":{ "k" : 1 }}, null, {"timestamp":"t2","event":"b"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)
	assert.False(t, res.Complete)
	assert.Contains(t, res.Reason, "record 1")
	assert.Equal(t, `{"k":1}`, string(res.Log.Events[0].Data))
}

func TestRecover_Unrecoverable(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrNotEventLog},
		{"array root", `[{"timestamp":"t1"}]`, ErrNotEventLog},
		{"garbage", `garbage`, ErrNotEventLog},
		{"no events key", `{"other": 1}`, ErrNoEventsArray},
		{"events not array", `{"events": {"a": 1}}`, ErrNoEventsArray},
		{"cut inside key", `{"eve`, ErrNoEventsArray},
		{"cut before array", `{"events": `, ErrNoEventsArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Recover(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestRepairFile_DefaultOutput(t *testing.T) {
	src := testutil.LogPath(t)
	testutil.WriteFile(t, src, testutil.TruncatedLog)

	res, err := RepairFile(src, "")
	require.NoError(t, err)
	assert.Equal(t, src+".recovered", res.Output)
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.Kept)

	assert.True(t, integrity.Validate(res.Output))
	assert.Equal(t, testutil.TruncatedLog, testutil.ReadFile(t, src), "source must not be modified")

	log, err := eventlog.ReadLog(res.Output)
	require.NoError(t, err)
	require.Len(t, log.Events, 1)
	assert.Equal(t, "t1", log.Events[0].Timestamp)
}

func TestRepairFile_ExplicitOutput(t *testing.T) {
	src := testutil.LogPath(t)
	dst := filepath.Join(t.TempDir(), "out", "fixed.json")
	testutil.WriteFile(t, src, testutil.TrailingGarbageLog)

	res, err := RepairFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, dst, res.Output)
	assert.Equal(t, testutil.EmptyLog, testutil.ReadFile(t, dst))
}

func TestRepairFile_RefusesSource(t *testing.T) {
	src := testutil.LogPath(t)
	testutil.WriteFile(t, src, testutil.TruncatedLog)

	_, err := RepairFile(src, filepath.Join(filepath.Dir(src), ".", filepath.Base(src)))
	assert.ErrorIs(t, err, ErrSameFile)
	assert.Equal(t, testutil.TruncatedLog, testutil.ReadFile(t, src))
}

func TestRepairFile_MissingSource(t *testing.T) {
	_, err := RepairFile(filepath.Join(t.TempDir(), "absent.json"), "")
	assert.Error(t, err)
}

func TestRepairFile_Unrecoverable(t *testing.T) {
	src := testutil.LogPath(t)
	testutil.WriteFile(t, src, "not json at all")

	_, err := RepairFile(src, "")
	assert.ErrorIs(t, err, ErrNotEventLog)

	_, statErr := os.Stat(DefaultOutput(src))
	assert.True(t, os.IsNotExist(statErr), "no output for unrecoverable input")
}

func TestTail(t *testing.T) {
	path := testutil.LogPath(t)
	testutil.WriteFile(t, path, testutil.ValidLog)

	lines, err := Tail(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"    }", "  ]", "}"}, lines)

	all, err := Tail(path, 100)
	require.NoError(t, err)
	assert.Len(t, all, strings.Count(testutil.ValidLog, "\n"))

	none, err := Tail(path, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTail_LongLineIsClipped(t *testing.T) {
	path := testutil.LogPath(t)
	testutil.WriteFile(t, path, strings.Repeat("x", 1000))

	lines, err := Tail(path, 5)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "..."))
	assert.Len(t, lines[0], maxTailLine+3)
}
