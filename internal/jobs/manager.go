package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/config"
	"github.com/juanfuturochile/appstore.koplugin/internal/reconcile"
	"github.com/juanfuturochile/appstore.koplugin/internal/websocket"
)

// ErrJobRunning is returned when a job is requested while another one runs.
var ErrJobRunning = errors.New("a job is already running")

// JobContext is an interface that provides the necessary dependencies for a job to run.
// The core.App struct will implement this interface.
type JobContext interface {
	Config() *config.Config
	WsHub() *websocket.Hub
	JobManager() *JobManager
	Refresher() *catalog.Refresher
	Engine() *reconcile.Engine
}

// jobTask runs one job. ctx is cancelled by CancelJob.
type jobTask func(ctx context.Context, app JobContext, runID string) error

type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed", "cancelled"
	Message   string    `json:"message"`
	RunID     string    `json:"run_id,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]jobTask
	status  map[string]*JobStatus
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	appCtx  JobContext // Store the app context for scheduled jobs
}

func NewManager(appCtx JobContext) *JobManager {
	jm := &JobManager{
		jobs:   make(map[string]jobTask),
		status: make(map[string]*JobStatus),
		appCtx: appCtx,
	}
	return jm
}

func (jm *JobManager) Register(id, name string, task jobTask) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[id] = task
	jm.status[id] = &JobStatus{ID: id, Name: name, Status: "idle"}
}

// RunJob starts job id in the background and returns its run id. Only one
// job runs at a time.
func (jm *JobManager) RunJob(id string, app JobContext) (string, error) {
	jm.mu.Lock()
	if jm.running {
		jm.mu.Unlock()
		return "", ErrJobRunning
	}

	task, ok := jm.jobs[id]
	if !ok {
		jm.mu.Unlock()
		return "", &apperr.NotFoundError{Resource: fmt.Sprintf("job '%s'", id)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	runID := uuid.NewString()
	done := make(chan struct{})
	jm.running = true
	jm.cancel = cancel
	jm.done = done
	status := jm.status[id]
	status.Status = "running"
	status.RunID = runID
	status.StartTime = time.Now()
	status.EndTime = time.Time{}
	status.Message = "Job started..."
	jm.mu.Unlock()

	log.Info().Str("job", id).Str("run_id", runID).Msg("Starting job")
	// Run the actual task in a new goroutine so it doesn't block.
	go func() {
		var err error
		defer func() {
			// Ensure we always update the status and unlock the manager
			jm.mu.Lock()
			if r := recover(); r != nil {
				log.Error().Str("job", id).Interface("panic", r).Msg("Job panicked")
				status.Status = "failed"
				status.Message = fmt.Sprintf("Job panicked: %v", r)
			} else if ctx.Err() != nil {
				status.Status = "cancelled"
				status.Message = "Job cancelled."
			} else if err != nil {
				status.Status = "failed"
				status.Message = err.Error()
			} else if status.Status == "running" {
				status.Status = "success"
				if status.Message == "Job started..." {
					status.Message = "Job completed successfully."
				}
			}
			status.EndTime = time.Now()
			jm.running = false
			jm.cancel = nil
			jm.mu.Unlock()
			cancel()
			close(done)
			log.Info().Str("job", id).Str("status", status.Status).Msg("Finished job")
		}()

		err = task(ctx, app, runID)
	}()
	return runID, nil
}

// SetMessage updates the status message of a running job.
func (jm *JobManager) SetMessage(id, message string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if s, ok := jm.status[id]; ok && s.Status == "running" {
		s.Message = message
	}
}

// CancelJob cancels the running job. It reports whether a job was running.
func (jm *JobManager) CancelJob() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if !jm.running || jm.cancel == nil {
		return false
	}
	jm.cancel()
	return true
}

// Wait blocks until the running job, if any, has finished.
func (jm *JobManager) Wait() {
	jm.mu.Lock()
	done := jm.done
	jm.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a job is in flight.
func (jm *JobManager) Running() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.running
}

func (jm *JobManager) GetStatus() []*JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	statuses := make([]*JobStatus, 0, len(jm.status))
	for _, s := range jm.status {
		copied := *s
		statuses = append(statuses, &copied)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}
