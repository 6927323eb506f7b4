package jobs

import (
	"context"
	"log/slog"

	"dispatch/internal/core/application/engine"

	"github.com/robfig/cron/v3"
)

// AssignmentPollJob refreshes the candidate assignment pool on a fixed
// schedule. The poll is the catch-up channel for pushes the deliverer missed;
// the engine's merge keeps duplicates harmless.
type AssignmentPollJob struct {
	engine *engine.Engine
	cron   *cron.Cron
	logger *slog.Logger
}

// NewAssignmentPollJob creates a job polling the backing store every thirty
// seconds.
func NewAssignmentPollJob(eng *engine.Engine, logger *slog.Logger) *AssignmentPollJob {
	return &AssignmentPollJob{
		engine: eng,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger.With("component", "assignment_poll_job"),
	}
}

// Start begins the assignment poll job.
func (j *AssignmentPollJob) Start() error {
	_, err := j.cron.AddFunc("*/30 * * * * *", func() {
		ctx := context.Background()

		if err := j.engine.Poll(ctx); err != nil {
			// The next tick retries; a missed poll costs freshness, not state.
			j.logger.WarnContext(ctx, "Assignment poll failed", "error", err)
		}
	})

	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Assignment poll job started (running every 30 seconds)")
	return nil
}

// Stop stops the assignment poll job.
func (j *AssignmentPollJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Assignment poll job stopped")
}
