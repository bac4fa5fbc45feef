// Package worker keeps on-disk ledger snapshots current. It consumes ledger
// change events and rewrites the snapshot after every change, so the newest
// backup is at most one event behind the database.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ccexpense/internal/amqp"
	"ccexpense/internal/services"
)

// SnapshotName is the fixed file name of the most recent snapshot.
const SnapshotName = "ledger-backup.json"

// BackupWorker materializes full-ledger JSON snapshots into a directory.
type BackupWorker struct {
	backups *services.BackupService
	dir     string
}

func NewBackupWorker(backups *services.BackupService, dir string) *BackupWorker {
	return &BackupWorker{backups: backups, dir: dir}
}

// HandleLedgerChange rewrites the snapshot for any change. The message only
// tells us the ledger moved; the snapshot is always rebuilt from storage.
func (w *BackupWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"change", msg.Change,
		"transaction_count", len(msg.TransactionIDs))

	if err := w.WriteSnapshot(ctx); err != nil {
		return fmt.Errorf("handle %s change: %w", msg.Change, err)
	}
	return nil
}

// StartupSnapshot writes one snapshot at worker start. This recovers from
// events missed while the worker was down.
func (w *BackupWorker) StartupSnapshot(ctx context.Context) error {
	slog.InfoContext(ctx, "Writing startup snapshot", "dir", w.dir)
	if err := w.WriteSnapshot(ctx); err != nil {
		return fmt.Errorf("startup snapshot: %w", err)
	}
	return nil
}

// WriteSnapshot assembles the current ledger and replaces the snapshot file
// atomically. Two files are kept: the fixed-name latest snapshot and one
// per calendar day.
func (w *BackupWorker) WriteSnapshot(ctx context.Context) error {
	backup, err := w.backups.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate backup: %w", err)
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	latest := filepath.Join(w.dir, SnapshotName)
	if err := writeFileAtomic(latest, data); err != nil {
		return fmt.Errorf("write latest snapshot: %w", err)
	}

	daily := filepath.Join(w.dir, fmt.Sprintf("ledger-%s.json", backup.Timestamp.Format("2006-01-02")))
	if err := writeFileAtomic(daily, data); err != nil {
		return fmt.Errorf("write daily snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot written",
		"path", latest,
		"transactions", len(backup.Transactions),
		"bytes", len(data))
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over the target, so readers never see a partial snapshot.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
