// Package repair reconstructs a valid event log from a truncated or corrupted file.
//
// Recovery walks the file with a streaming JSON tokenizer and keeps every
// array element of "events" that decodes completely as a record. Scanning stops
// at the first element that does not; everything after it is dropped. The result
// never depends on how the original was formatted, so minified files, records
// spanning many lines, and strings containing "}," all recover the same way.
//
// The recovered document is written to a separate file for manual promotion.
// The source is never modified.
package repair

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/sharedlog/internal/eventlog"
	"github.com/roach88/sharedlog/internal/integrity"
)

// RecoveredSuffix is appended to the source path when no output path is given.
const RecoveredSuffix = ".recovered"

var (
	// ErrNotEventLog means the input does not start as a JSON object.
	ErrNotEventLog = errors.New("input is not a JSON object")

	// ErrNoEventsArray means no "events" array was found before the input broke off.
	ErrNoEventsArray = errors.New(`no "events" array found`)

	// ErrSameFile means the output path would overwrite the source.
	ErrSameFile = errors.New("output path is the source file")

	// ErrInvalidOutput means the written file did not validate.
	ErrInvalidOutput = errors.New("recovered file failed validation")
)

// Result describes a recovery.
type Result struct {
	Source string `json:"source" yaml:"source"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Log holds the recovered records.
	Log *eventlog.EventLog `json:"-" yaml:"-"`

	// Kept is the number of records recovered.
	Kept int `json:"kept" yaml:"kept"`

	// Complete is true when the input was a whole document and nothing was dropped.
	Complete bool `json:"complete" yaml:"complete"`

	// Offset is the input byte offset just past the last kept record.
	Offset int64 `json:"offset" yaml:"offset"`

	// Reason says why scanning stopped early. Empty when Complete.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Valid is the validation verdict on the written output.
	Valid bool `json:"valid" yaml:"valid"`
}

// Recover scans r and returns every complete record.
//
// It fails only when no "events" array can be located; a log whose array is
// cut off before its first record recovers as an empty log.
func Recover(r io.Reader) (*Result, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	res := &Result{Log: eventlog.NewEventLog()}

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEventLog, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotEventLog
	}

	found := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return stop(res, found, fmt.Sprintf("read key: %v", err))
		}
		key, _ := keyTok.(string)

		if key != "events" || found {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return stop(res, found, fmt.Sprintf("skip %q: %v", key, err))
			}
			continue
		}

		tok, err := dec.Token()
		if err != nil {
			return stop(res, false, fmt.Sprintf("read events: %v", err))
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return nil, fmt.Errorf("%w: \"events\" is not an array", ErrNoEventsArray)
		}
		found = true

		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return stop(res, true, fmt.Sprintf("record %d incomplete: %v", res.Kept, err))
			}
			rec, err := eventlog.DecodeRecord(raw)
			if err != nil {
				return stop(res, true, fmt.Sprintf("record %d is not an event: %v", res.Kept, err))
			}
			res.Log.Events = append(res.Log.Events, rec)
			res.Kept++
			res.Offset = dec.InputOffset()
		}

		if _, err := dec.Token(); err != nil {
			return stop(res, true, fmt.Sprintf("events array not closed: %v", err))
		}
	}

	if !found {
		return nil, ErrNoEventsArray
	}
	if _, err := dec.Token(); err != nil {
		return stop(res, true, fmt.Sprintf("document not closed: %v", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return stop(res, true, "trailing data after document")
	}

	res.Complete = true
	return res, nil
}

func stop(res *Result, found bool, reason string) (*Result, error) {
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoEventsArray, reason)
	}
	res.Reason = reason
	return res, nil
}

// DefaultOutput returns the output path used when none is given.
func DefaultOutput(src string) string {
	return src + RecoveredSuffix
}

// RepairFile recovers src into dst (DefaultOutput(src) when empty) and validates dst.
//
// dst is written atomically. ErrInvalidOutput is returned together with the
// result if the written file does not validate.
func RepairFile(src, dst string) (*Result, error) {
	if dst == "" {
		dst = DefaultOutput(src)
	}
	if samePath(src, dst) {
		return nil, ErrSameFile
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	res, err := Recover(f)
	if err != nil {
		return nil, fmt.Errorf("recover %s: %w", src, err)
	}
	res.Source = src
	res.Output = dst

	if err := eventlog.WriteLog(dst, res.Log); err != nil {
		return res, fmt.Errorf("write recovered log: %w", err)
	}

	report := integrity.Check(dst)
	res.Valid = report.Valid
	if !report.Valid {
		return res, fmt.Errorf("%w: %s", ErrInvalidOutput, report.Reason)
	}
	return res, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// maxTailLine caps each returned line so a minified file does not flood the terminal.
const maxTailLine = 240

// Tail returns up to the last n lines of path for manual diagnosis.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", path, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		if len(line) > maxTailLine {
			lines[i] = "..." + line[len(line)-maxTailLine:]
		}
	}
	return lines, nil
}
