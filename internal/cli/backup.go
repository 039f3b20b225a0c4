package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedlog/internal/backup"
	"github.com/roach88/sharedlog/internal/eventlog"
)

// BackupResult is the structured output of snapshot and restore.
type BackupResult struct {
	Path   string `json:"path" yaml:"path"`
	Backup string `json:"backup" yaml:"backup"`
	Done   bool   `json:"done" yaml:"done"`
}

func (o *RootOptions) backupManager(cmd *cobra.Command) (*backup.Manager, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	return backup.NewManager(cfg.Path, cfg.Lock.Timeout, o.logger(cmd)), nil
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Copy the log to its backup if it is valid",
		Long: `Copy the log to <path>.backup, but only if it validates.

An invalid log never replaces the backup. Exits 1 when no snapshot was taken.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			m, err := rootOpts.backupManager(cmd)
			if err != nil {
				return err
			}

			ok, err := m.SnapshotIfValid(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeIO, "snapshot failed", err)
			}

			res := BackupResult{Path: m.Path(), Backup: m.BackupPath(), Done: ok}
			if err := f.Render(res, func(w io.Writer) {
				if ok {
					fmt.Fprintf(w, "✓ snapshot written to %s\n", res.Backup)
				} else {
					fmt.Fprintf(w, "✗ %s is not valid, backup left unchanged\n", res.Path)
				}
			}); err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitFailure, "log is not valid, no snapshot taken")
			}
			return nil
		},
	}
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the log with its backup",
		Long: `Replace the log with <path>.backup.

The backup is validated first; when it is missing or invalid the log is left
untouched and the command exits 1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			m, err := rootOpts.backupManager(cmd)
			if err != nil {
				return err
			}

			if _, err := m.RestoreFromBackup(cmd.Context()); err != nil {
				if eventlog.IsRestoreFailure(err) {
					return f.Fail(ExitFailure, ErrCodeRestoreFailed, "restore failed", err)
				}
				return f.Fail(ExitCommandError, ErrCodeIO, "restore failed", err)
			}

			res := BackupResult{Path: m.Path(), Backup: m.BackupPath(), Done: true}
			return f.Render(res, func(w io.Writer) {
				fmt.Fprintf(w, "✓ restored %s from %s\n", res.Path, res.Backup)
			})
		},
	}
}
