package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/sharedlog/internal/monitor"
)

// DefaultLimit is the number of rows Recent returns when limit is not positive.
const DefaultLimit = 20

// Record inserts an outcome. Uses ON CONFLICT(check_id) DO NOTHING, so
// duplicate check ids are silently ignored.
//
// Record satisfies monitor.Recorder.
func (s *Store) Record(ctx context.Context, out monitor.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(check_id, path, state, started_at, duration_ns, events, reason, snapshot, restored, error, consecutive_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(check_id) DO NOTHING
	`,
		out.CheckID,
		out.Path,
		out.State.String(),
		out.Started.UTC().Format(time.RFC3339Nano),
		int64(out.Duration),
		out.Events,
		out.Reason,
		out.Snapshot,
		out.Restored,
		out.Err,
		out.ConsecutiveFailures,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
//
// Returns an empty slice (not nil) if nothing has been recorded.
func (s *Store) Recent(ctx context.Context, limit int) ([]monitor.Outcome, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT check_id, path, state, started_at, duration_ns, events, reason, snapshot, restored, error, consecutive_failures
		FROM outcomes
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []monitor.Outcome{}
	for rows.Next() {
		out, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return outcomes, nil
}

// Counts returns the number of recorded outcomes per state name.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, COUNT(*)
		FROM outcomes
		GROUP BY state
		ORDER BY state
	`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	return counts, nil
}

func scanOutcome(rows *sql.Rows) (monitor.Outcome, error) {
	var (
		out      monitor.Outcome
		state    string
		started  string
		duration int64
	)
	err := rows.Scan(
		&out.CheckID,
		&out.Path,
		&state,
		&started,
		&duration,
		&out.Events,
		&out.Reason,
		&out.Snapshot,
		&out.Restored,
		&out.Err,
		&out.ConsecutiveFailures,
	)
	if err != nil {
		return monitor.Outcome{}, fmt.Errorf("scan outcome: %w", err)
	}

	if err := out.State.UnmarshalText([]byte(state)); err != nil {
		return monitor.Outcome{}, fmt.Errorf("outcome %s: %w", out.CheckID, err)
	}
	out.Started, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return monitor.Outcome{}, fmt.Errorf("outcome %s: parse started_at: %w", out.CheckID, err)
	}
	out.Duration = time.Duration(duration)

	return out, nil
}
