/*
scheduler.go - Periodic backup scheduler

PURPOSE:
  Periodically copies the data file of every loaded user to its backup,
  so a bad save can be rolled back by hand.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on start
  - A failed backup is logged and does not stop the others

USAGE:
  scheduler := NewBackupScheduler(files, handler.LoadedUsers, logger)
  scheduler.Interval = cfg.BackupInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: BackupUser endpoint (manual backup)
  - persist/file.go: FileStore.Backup
*/
package api

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/warp/expense-engine/logging"
	"github.com/warp/expense-engine/persist"
)

// Backuper copies a user's saved data to its backup location.
type Backuper interface {
	Backup(ctx context.Context, user persist.User) error
}

// BackupScheduler backs up the users returned by Users on every tick.
type BackupScheduler struct {
	Backups  Backuper
	Users    func() []string
	Interval time.Duration
	Enabled  bool

	log    *logging.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBackupScheduler creates a new scheduler.
func NewBackupScheduler(backups Backuper, users func() []string, logger *logging.Logger) *BackupScheduler {
	return &BackupScheduler{
		Backups:  backups,
		Users:    users,
		Interval: 1 * time.Hour,
		Enabled:  true,
		log:      logging.OrNop(logger).WithComponent(logging.ComponentBackup),
	}
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled || bs.Interval <= 0 {
		bs.log.Info("scheduler disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run()

	bs.log.Info("scheduler started", "interval", bs.Interval)
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.ticker = nil
		bs.log.Info("scheduler stopped")
	}
}

func (bs *BackupScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.RunOnce(context.Background())

	for {
		select {
		case <-bs.ticker.C:
			bs.RunOnce(context.Background())
		case <-bs.stop:
			return
		}
	}
}

// RunOnce backs up every current user and returns how many succeeded.
// Users that were never saved are skipped.
func (bs *BackupScheduler) RunOnce(ctx context.Context) int {
	done, skipped := 0, 0
	for _, username := range bs.Users() {
		err := bs.Backups.Backup(ctx, persist.User{Username: username})
		switch {
		case err == nil:
			done++
		case errors.Is(err, os.ErrNotExist):
			skipped++
		default:
			bs.log.ErrorContext(ctx, "backup failed", logging.FieldUser, username, logging.FieldError, err)
		}
	}

	if done > 0 || skipped > 0 {
		bs.log.InfoContext(ctx, "backup run completed", "backed_up", done, "skipped", skipped)
	}
	return done
}
