package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

const (
	JobCatalogRefresh = "catalog-refresh"
	JobCheckPlugins   = "check-plugins"
	JobCheckPatches   = "check-patches"
	JobPruneOrphans   = "prune-orphans"
)

// sendProgress sends a progress update via WebSocket to connected clients.
func sendProgress(app JobContext, update models.ProgressUpdate) {
	if hub := app.WsHub(); hub != nil {
		hub.BroadcastJSON(update)
	}
}

// finish records the final message and broadcasts the done update.
func finish(app JobContext, jobID, runID, status, message string) {
	if jm := app.JobManager(); jm != nil {
		jm.SetMessage(jobID, message)
	}
	sendProgress(app, models.ProgressUpdate{
		JobID: jobID, RunID: runID, Message: message, Progress: 100, Status: status, Done: true,
	})
}

// RunCatalogRefresh refetches both catalog kinds.
func RunCatalogRefresh(ctx context.Context, app JobContext, runID string) error {
	sendProgress(app, models.ProgressUpdate{
		JobID: JobCatalogRefresh, RunID: runID, Message: "Refreshing catalog...", Status: "in_progress",
	})

	counts, err := app.Refresher().RefreshAll(ctx)
	if err != nil {
		finish(app, JobCatalogRefresh, runID, "failed", "Catalog refresh failed: "+err.Error())
		return err
	}

	var parts []string
	for _, k := range models.Kinds {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k.Plural()))
	}
	finish(app, JobCatalogRefresh, runID, "completed", "Catalog refreshed: "+strings.Join(parts, ", "))
	return nil
}

// RunCheckPlugins checks every matched plugin for updates.
func RunCheckPlugins(ctx context.Context, app JobContext, runID string) error {
	return runCheck(ctx, app, JobCheckPlugins, runID, models.KindPlugin)
}

// RunCheckPatches checks every matched patch for updates.
func RunCheckPatches(ctx context.Context, app JobContext, runID string) error {
	return runCheck(ctx, app, JobCheckPatches, runID, models.KindPatch)
}

func runCheck(ctx context.Context, app JobContext, jobID, runID string, kind models.Kind) error {
	sendProgress(app, models.ProgressUpdate{
		JobID: jobID, RunID: runID, Message: fmt.Sprintf("Checking %s...", kind.Plural()), Status: "in_progress",
	})

	result, err := app.Engine().CheckAll(ctx, kind, func(done, total int, v models.Verdict) {
		verdict := v
		sendProgress(app, models.ProgressUpdate{
			JobID:    jobID,
			RunID:    runID,
			Message:  fmt.Sprintf("Checked %s (%d/%d)", v.Key, done, total),
			Progress: float64(done) / float64(total) * 100,
			Status:   "in_progress",
			Verdict:  &verdict,
		})
	})
	if err != nil {
		finish(app, jobID, runID, "failed", "Update check failed: "+err.Error())
		return err
	}

	s := result.Summary
	msg := fmt.Sprintf("Checked %d %s: %d need updates, %d up to date, %d failed, %d unmatched",
		s.Total, kind.Plural(), s.NeedsUpdate, s.UpToDate, s.CheckFailed, s.Unmatched)
	if result.Cancelled {
		finish(app, jobID, runID, "cancelled", "Cancelled. "+msg)
		return ctx.Err()
	}
	finish(app, jobID, runID, "completed", msg)
	return nil
}

// RunPruneOrphans drops registry records whose local artifact is gone.
func RunPruneOrphans(ctx context.Context, app JobContext, runID string) error {
	var pruned []string
	for i, kind := range models.Kinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		keys, err := app.Engine().Prune(kind)
		if err != nil {
			finish(app, JobPruneOrphans, runID, "failed", "Prune failed: "+err.Error())
			return err
		}
		for _, k := range keys {
			pruned = append(pruned, fmt.Sprintf("%s:%s", kind, k))
		}
		sendProgress(app, models.ProgressUpdate{
			JobID:    JobPruneOrphans,
			RunID:    runID,
			Message:  fmt.Sprintf("Pruned %d orphaned %s records", len(keys), kind),
			Progress: float64(i+1) / float64(len(models.Kinds)) * 100,
			Status:   "in_progress",
		})
	}
	finish(app, JobPruneOrphans, runID, "completed", fmt.Sprintf("Pruned %d orphaned records", len(pruned)))
	return nil
}
