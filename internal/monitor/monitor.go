// Package monitor implements the integrity monitor daemon for the shared event log.
//
// Each cycle validates the primary. A valid primary is mirrored to the backup;
// an invalid one is restored from the backup when the backup is valid. When both
// are invalid the cycle is logged as CORRUPT_UNRECOVERABLE and the daemon keeps
// polling, since a human or the repair tool may fix the file between cycles.
//
// Cycles run on a fixed interval and, optionally, shortly after the primary is
// written. Run only returns when its context is cancelled.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/sharedlog/internal/backup"
	"github.com/roach88/sharedlog/internal/integrity"
)

// DefaultInterval is the poll interval between checks.
const DefaultInterval = 5 * time.Second

// Recorder receives every outcome (e.g. the SQLite history store).
type Recorder interface {
	Record(ctx context.Context, out Outcome) error
}

// Config holds the monitor settings.
type Config struct {
	Path        string
	Interval    time.Duration
	Snapshot    bool
	Watch       bool
	Debounce    time.Duration
	LockTimeout time.Duration
}

// Monitor is the daemon. Check and Run must not be called concurrently.
type Monitor struct {
	cfg      Config
	backup   *backup.Manager
	logger   *slog.Logger
	metrics  *Metrics
	recorder Recorder
	newID    func() string
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	last     Outcome
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithRegisterer registers metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Monitor) { m.metrics = NewMetrics(reg) }
}

// WithIDGenerator overrides the UUIDv7 check ids (for tests).
func WithIDGenerator(gen func() string) Option {
	return func(m *Monitor) { m.newID = gen }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New validates cfg and builds a Monitor.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if cfg.Path == "" {
		return nil, errors.New("monitor: empty log path")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor: interval must be positive, got %v", cfg.Interval)
	}

	m := &Monitor{
		cfg:    cfg,
		logger: slog.Default(),
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		now:    time.Now,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	m.logger = m.logger.With("component", "monitor")
	m.backup = backup.NewManager(cfg.Path, cfg.LockTimeout, m.logger)
	m.logger = m.logger.With("path", cfg.Path)
	return m, nil
}

// State returns the current state (IDLE between cycles).
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Last returns the most recent outcome.
func (m *Monitor) Last() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Metrics exposes the monitor's instruments.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Check runs one IDLE → CHECKING → outcome → IDLE cycle.
// It never panics or returns an error; problems are reported in the Outcome.
func (m *Monitor) Check(ctx context.Context) (out Outcome) {
	start := m.now()
	out = Outcome{CheckID: m.newID(), Path: m.cfg.Path, Started: start}

	m.setState(StateChecking)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("check panicked", "check_id", out.CheckID, "panic", r)
			out.State = StateCorruptUnrecoverable
			out.Err = fmt.Sprint(r)
		}
		m.finish(ctx, &out, start)
	}()

	report := integrity.Check(m.cfg.Path)
	switch {
	case !report.Exists:
		out.State = StateMissing
		m.logger.Warn("event log missing", "check_id", out.CheckID)

	case !report.Readable:
		out.State = StateUnreadable
		out.Reason = report.Reason
		m.logger.Error("event log unreadable", "check_id", out.CheckID, "reason", report.Reason)

	case report.Valid:
		out.State = StateHealthy
		out.Events = report.Events
		if m.cfg.Snapshot {
			ok, err := m.backup.SnapshotIfValid(ctx)
			if err != nil {
				out.Err = err.Error()
				m.logger.Warn("snapshot failed", "check_id", out.CheckID, "error", err)
			}
			out.Snapshot = ok
		}
		m.logger.Debug("event log healthy", "check_id", out.CheckID, "events", out.Events, "snapshot", out.Snapshot)

	default:
		out.Reason = report.Reason
		m.logger.Warn("event log corrupt", "check_id", out.CheckID, "reason", report.Reason)

		ok, err := m.backup.RestoreIfCorrupt(ctx)
		if errors.Is(err, backup.ErrPrimaryValid) {
			// A writer replaced the primary between the check and the lock.
			out.State = StateHealthy
			out.Reason = ""
			out.Events = integrity.Check(m.cfg.Path).Events
			m.logger.Info("event log valid again, restore skipped", "check_id", out.CheckID)
			break
		}
		if ok {
			out.State = StateCorruptRecoverable
			out.Restored = true
			out.Events = integrity.Check(m.cfg.Path).Events
			m.logger.Info("restored from backup", "check_id", out.CheckID, "events", out.Events)
			break
		}
		out.State = StateCorruptUnrecoverable
		if err != nil {
			out.Err = err.Error()
		}
	}
	return out
}

// finish updates counters, metrics and history for a completed cycle.
func (m *Monitor) finish(ctx context.Context, out *Outcome, start time.Time) {
	m.mu.Lock()
	switch out.State {
	case StateCorruptUnrecoverable:
		m.failures++
	case StateHealthy, StateCorruptRecoverable:
		m.failures = 0
	}
	out.ConsecutiveFailures = m.failures
	out.Duration = m.now().Sub(start)
	m.last = *out
	m.state = StateIdle
	m.mu.Unlock()

	if out.State == StateCorruptUnrecoverable {
		m.logger.Error("event log corrupt and backup unusable, manual repair required",
			"check_id", out.CheckID,
			"reason", out.Reason,
			"error", out.Err,
			"consecutive_failures", out.ConsecutiveFailures,
		)
	}

	m.metrics.observe(*out)

	if m.recorder != nil {
		if err := m.recorder.Record(ctx, *out); err != nil {
			m.logger.Warn("failed to record outcome", "check_id", out.CheckID, "error", err)
		}
	}
}

// Run checks immediately, then on every tick and file trigger until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	var triggers <-chan struct{}
	if m.cfg.Watch {
		w, err := m.startWatcher(ctx)
		if err != nil {
			m.logger.Warn("file watch unavailable, polling only", "error", err)
		} else {
			defer w.Stop()
			triggers = w.Triggers()
		}
	}

	m.logger.Info("monitor started", "interval", m.cfg.Interval, "snapshot", m.cfg.Snapshot, "watch", triggers != nil)
	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.Check(ctx)
		case <-triggers:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) startWatcher(ctx context.Context) (*Watcher, error) {
	w, err := NewWatcher(m.cfg.Path, m.cfg.Debounce, m.logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}
