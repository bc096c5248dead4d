package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/locking"
	"github.com/aristath/wyckoff-trader/internal/reliability"
)

// BackupJob archives the databases to the backup bucket and rotates
// old archives. The lock prevents overlapping runs when an upload
// outlasts the schedule interval.
type BackupJob struct {
	log           zerolog.Logger
	lockManager   *locking.Manager
	backupService *reliability.BackupService
	retentionDays int
	timeout       time.Duration
}

// NewBackupJob creates a backup job
func NewBackupJob(
	backupService *reliability.BackupService,
	lockManager *locking.Manager,
	retentionDays int,
	log zerolog.Logger,
) *BackupJob {
	return &BackupJob{
		log:           log.With().Str("job", "backup").Logger(),
		lockManager:   lockManager,
		backupService: backupService,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup, then rotates old archives
func (j *BackupJob) Run() error {
	if err := j.lockManager.Acquire("backup"); err != nil {
		j.log.Warn().Err(err).Msg("Backup already running")
		return nil
	}
	defer j.lockManager.Release("backup")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.backupService.CreateAndUpload(ctx); err != nil {
		return err
	}
	if err := j.backupService.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
