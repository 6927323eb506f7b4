// Package jobs provides scheduled background tasks for the dispatch engine.
//
// This package implements cron-based jobs using github.com/robfig/cron/v3
// to handle periodic operations required by the engine.
//
// # Available Jobs
//
// 1. AssignmentPollJob - Runs every thirty seconds to refresh the candidate
// assignment pool from the backing store
//
// # Usage
//
// Jobs are managed through JobManager which provides a unified interface:
//
//	jobManager := jobs.NewJobManager(eng, logger)
//
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//
//	defer jobManager.StopAll()
//
// # Error Handling
//
// A failed poll is logged and retried on the next tick; the engine's merge
// semantics make a late or repeated poll harmless.
package jobs
