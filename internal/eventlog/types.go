package eventlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for every published event.
// Fixed width keeps lexicographic and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// legacyLayout is the naive local-time form written by older producers.
const legacyLayout = "2006-01-02T15:04:05.999999999"

// EventRecord is one timestamped, typed, opaque-payload entry in the log.
type EventRecord struct {
	Timestamp string          `json:"timestamp"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

// EventLog is the full persisted document.
type EventLog struct {
	Events []EventRecord `json:"events"`
}

// NewEventLog returns an empty log that encodes as {"events": []}.
func NewEventLog() *EventLog {
	return &EventLog{Events: []EventRecord{}}
}

// Filter selects records in GetEvents. Zero-valued fields do not filter.
type Filter struct {
	// EventType keeps records whose Event equals it exactly.
	EventType string

	// Since keeps records strictly newer than it.
	Since string
}

// Match reports whether rec passes both filters.
func (f Filter) Match(rec EventRecord) bool {
	if f.EventType != "" && rec.Event != f.EventType {
		return false
	}
	if f.Since != "" && !TimestampAfter(rec.Timestamp, f.Since) {
		return false
	}
	return true
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 timestamps and the naive local-time form.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// TimestampAfter reports whether ts is strictly later than since.
// Both values are compared as instants when they parse, otherwise as strings.
func TimestampAfter(ts, since string) bool {
	t, err1 := ParseTimestamp(ts)
	s, err2 := ParseTimestamp(since)
	if err1 == nil && err2 == nil {
		return t.After(s)
	}
	return ts > since
}

// DecodeLog parses data as an event log document.
//
// The document must be a single JSON object with an "events" array of
// objects, followed only by whitespace. Unknown top-level keys are ignored.
// Payloads are returned compacted, whatever the file's layout.
func DecodeLog(data []byte) (*EventLog, error) {
	var doc struct {
		Events *[]json.RawMessage `json:"events"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("decode at offset %d: %w", dec.InputOffset(), err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after document at offset %d", dec.InputOffset())
	}
	if doc.Events == nil {
		return nil, errors.New(`missing "events" array`)
	}

	log := &EventLog{Events: make([]EventRecord, 0, len(*doc.Events))}
	for i, raw := range *doc.Events {
		rec, err := DecodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("events.%d: %w", i, err)
		}
		log.Events = append(log.Events, rec)
	}
	return log, nil
}

// DecodeRecord parses one element of the events array. The element must be a
// JSON object; its payload is compacted.
func DecodeRecord(raw json.RawMessage) (EventRecord, error) {
	var rec EventRecord
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return rec, errors.New("record is not an object")
	}
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return rec, err
	}
	if len(rec.Data) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, rec.Data); err != nil {
			return rec, fmt.Errorf("compact data: %w", err)
		}
		rec.Data = buf.Bytes()
	}
	return rec, nil
}

// EncodeLog renders log as indented JSON with a trailing newline.
func EncodeLog(log *EventLog) ([]byte, error) {
	out := log
	if log.Events == nil {
		out = NewEventLog()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode log: %w", err)
	}
	return buf.Bytes(), nil
}

// marshalData converts a caller payload to raw JSON.
func marshalData(data any) (json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return raw, nil
}
