package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultLockTimeout bounds how long an operation waits for the file lock.
const DefaultLockTimeout = 10 * time.Second

// Store owns one event log file. Construct it once per process and share the pointer.
type Store struct {
	path        string
	mu          sync.Mutex
	now         func() time.Time
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open returns a Store for the log at path. The parent directory is created;
// the log file itself is created lazily by the first Publish.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open event log: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, NewIOError("open", path, err)
	}

	s := &Store{
		path:        path,
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the log file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the lock file path.
func (s *Store) LockPath() string {
	return LockPath(s.path)
}

// Publish appends a new record with the current timestamp.
//
// The whole document is read, extended and rewritten under the exclusive lock.
// A corrupt log is not overwritten: the CORRUPTION error is returned instead.
func (s *Store) Publish(ctx context.Context, eventType string, data any) error {
	payload, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := AcquireLock(ctx, s.LockPath(), true, s.lockTimeout)
	if err != nil {
		return NewIOError("publish", s.path, err)
	}
	defer lock.Release()

	log, err := ReadLog(s.path)
	if err != nil {
		return err
	}

	log.Events = append(log.Events, EventRecord{
		Timestamp: FormatTimestamp(s.now()),
		Event:     eventType,
		Data:      payload,
	})

	if err := WriteLog(s.path, log); err != nil {
		return err
	}

	s.logger.Debug("event published", "path", s.path, "event", eventType, "count", len(log.Events))
	return nil
}

// GetEvents returns the records matching filter in append order.
// A missing log yields an empty, non-nil slice.
func (s *Store) GetEvents(ctx context.Context, filter Filter) ([]EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := AcquireLock(ctx, s.LockPath(), false, s.lockTimeout)
	if err != nil {
		return nil, NewIOError("get events", s.path, err)
	}
	defer lock.Release()

	log, err := ReadLog(s.path)
	if err != nil {
		return nil, err
	}

	out := make([]EventRecord, 0, len(log.Events))
	for _, rec := range log.Events {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ClearEvents resets the log to {"events": []}. The backup is left alone.
func (s *Store) ClearEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := AcquireLock(ctx, s.LockPath(), true, s.lockTimeout)
	if err != nil {
		return NewIOError("clear events", s.path, err)
	}
	defer lock.Release()

	if err := WriteLog(s.path, NewEventLog()); err != nil {
		return err
	}

	s.logger.Debug("events cleared", "path", s.path)
	return nil
}

// Stats summarizes the log.
type Stats struct {
	Count  int            `json:"count" yaml:"count"`
	First  string         `json:"first,omitempty" yaml:"first,omitempty"`
	Last   string         `json:"last,omitempty" yaml:"last,omitempty"`
	ByType map[string]int `json:"by_type" yaml:"by_type"`
	Types  []string       `json:"types" yaml:"types"`
}

// Stats reads the log and counts records per event type.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	events, err := s.GetEvents(ctx, Filter{})
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Count: len(events), ByType: map[string]int{}, Types: []string{}}
	for _, rec := range events {
		if _, seen := st.ByType[rec.Event]; !seen {
			st.Types = append(st.Types, rec.Event)
		}
		st.ByType[rec.Event]++
	}
	sort.Strings(st.Types)
	if len(events) > 0 {
		st.First = events[0].Timestamp
		st.Last = events[len(events)-1].Timestamp
	}
	return st, nil
}
