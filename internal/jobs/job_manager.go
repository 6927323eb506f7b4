package jobs

import (
	"fmt"
	"log/slog"

	"dispatch/internal/core/application/engine"
)

// JobManager coordinates all scheduled jobs in the application.
// Provides a unified interface to start and stop all background jobs.
type JobManager struct {
	assignmentPollJob *AssignmentPollJob
}

// NewJobManager creates a new job manager with all required jobs.
func NewJobManager(eng *engine.Engine, logger *slog.Logger) *JobManager {
	return &JobManager{
		assignmentPollJob: NewAssignmentPollJob(eng, logger),
	}
}

// StartAll starts all scheduled jobs.
// Returns an error if any job fails to start.
func (jm *JobManager) StartAll() error {
	if err := jm.assignmentPollJob.Start(); err != nil {
		return fmt.Errorf("failed to start assignment poll job: %w", err)
	}
	return nil
}

// StopAll stops all scheduled jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.assignmentPollJob.Stop()
}
