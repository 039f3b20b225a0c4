// Package backup maintains "<path>.backup", the last known-good copy of an event log.
//
// A snapshot is only taken from a valid primary, so the backup never inherits
// corruption. Restore only copies a valid backup, so a failed restore leaves the
// primary exactly as it was.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sharedlog/internal/eventlog"
	"github.com/roach88/sharedlog/internal/integrity"
)

// Suffix is appended to the primary path to form the backup path.
const Suffix = ".backup"

// ErrBackupInvalid is wrapped by restore failures caused by a missing or invalid backup.
var ErrBackupInvalid = errors.New("backup missing or invalid")

// ErrPrimaryValid is returned by RestoreIfCorrupt when the primary validated
// under the lock, so there was nothing to restore.
var ErrPrimaryValid = errors.New("primary is valid")

// Manager snapshots and restores one event log.
type Manager struct {
	path        string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewManager returns a Manager for the log at path.
func NewManager(path string, lockTimeout time.Duration, logger *slog.Logger) *Manager {
	if lockTimeout <= 0 {
		lockTimeout = eventlog.DefaultLockTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{path: path, lockTimeout: lockTimeout, logger: logger}
}

// Path returns the primary log path.
func (m *Manager) Path() string {
	return m.path
}

// BackupPath returns the backup file path.
func (m *Manager) BackupPath() string {
	return m.path + Suffix
}

// SnapshotIfValid copies the primary over the backup when the primary validates.
// Returns whether a snapshot was written; an invalid or missing primary is not an error.
func (m *Manager) SnapshotIfValid(ctx context.Context) (bool, error) {
	lock, err := eventlog.AcquireLock(ctx, eventlog.LockPath(m.path), true, m.lockTimeout)
	if err != nil {
		return false, eventlog.NewIOError("snapshot", m.path, err)
	}
	defer lock.Release()

	if !integrity.Validate(m.path) {
		m.logger.Debug("snapshot skipped, primary not valid", "path", m.path)
		return false, nil
	}

	if err := eventlog.CopyFileAtomic(m.path, m.BackupPath()); err != nil {
		return false, eventlog.NewIOError("snapshot", m.BackupPath(), err)
	}

	m.logger.Debug("snapshot written", "path", m.path, "backup", m.BackupPath())
	return true, nil
}

// RestoreFromBackup copies a valid backup over the primary.
//
// Returns (false, RESTORE_FAILED error) when the backup is missing or invalid;
// the primary is not touched in that case. I/O failures are returned as IO errors.
func (m *Manager) RestoreFromBackup(ctx context.Context) (bool, error) {
	lock, err := eventlog.AcquireLock(ctx, eventlog.LockPath(m.path), true, m.lockTimeout)
	if err != nil {
		return false, eventlog.NewIOError("restore", m.path, err)
	}
	defer lock.Release()

	return m.restoreLocked()
}

// RestoreIfCorrupt is RestoreFromBackup for callers that judged the primary
// corrupt without holding the lock. The primary is checked again under the
// lock; if a writer fixed or replaced it in the meantime, nothing is copied
// and ErrPrimaryValid is returned.
func (m *Manager) RestoreIfCorrupt(ctx context.Context) (bool, error) {
	lock, err := eventlog.AcquireLock(ctx, eventlog.LockPath(m.path), true, m.lockTimeout)
	if err != nil {
		return false, eventlog.NewIOError("restore", m.path, err)
	}
	defer lock.Release()

	if integrity.Validate(m.path) {
		m.logger.Info("restore skipped, primary became valid", "path", m.path)
		return false, ErrPrimaryValid
	}
	return m.restoreLocked()
}

func (m *Manager) restoreLocked() (bool, error) {
	report := integrity.Check(m.BackupPath())
	if !report.Valid {
		return false, eventlog.NewRestoreFailure(m.path,
			fmt.Errorf("%w: %s: %s", ErrBackupInvalid, m.BackupPath(), report.Reason))
	}

	if err := eventlog.CopyFileAtomic(m.BackupPath(), m.path); err != nil {
		return false, eventlog.NewIOError("restore", m.path, err)
	}

	m.logger.Info("restored from backup", "path", m.path, "backup", m.BackupPath(), "events", report.Events)
	return true, nil
}
