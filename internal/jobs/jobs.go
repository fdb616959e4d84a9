package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// RegisterAll registers every built-in job with the manager.
func RegisterAll(jm *JobManager) {
	jm.Register(JobCatalogRefresh, "Catalog Refresh", RunCatalogRefresh)
	jm.Register(JobCheckPlugins, "Check Plugin Updates", RunCheckPlugins)
	jm.Register(JobCheckPatches, "Check Patch Updates", RunCheckPatches)
	jm.Register(JobPruneOrphans, "Prune Orphaned Records", RunPruneOrphans)
}

// StartJobs starts the background job scheduler. It returns nil when
// scheduled refresh is disabled.
func StartJobs(app JobContext) *gocron.Scheduler {
	interval := app.Config().RefreshInterval
	if interval <= 0 {
		log.Info().Msg("Catalog refresh interval is 0, scheduled refresh is disabled.")
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	scheduleJob(s, app, JobCatalogRefresh, interval)

	log.Info().Msg("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func scheduleJob(s *gocron.Scheduler, app JobContext, jobID string, interval int) {
	log.Info().Str("job", jobID).Int("minutes", interval).Msg("Scheduling job")

	// The first run waits one full interval; startup does not hit the remote.
	_, err := s.Every(interval).Minutes().WaitForSchedule().Do(func() {
		log.Info().Str("job", jobID).Msg("Scheduler is triggering job")
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered jobs.
		if _, err := app.JobManager().RunJob(jobID, app); err != nil {
			log.Warn().Err(err).Str("job", jobID).Msg("Scheduled job could not start")
		}
	})
	if err != nil {
		log.Error().Err(err).Str("job", jobID).Msg("Error scheduling job")
	}
}
