// Package worker contains the background worker that drains pending mistake
// records into weak points and refreshes the dashboards of recently active
// users. The worker runs independently of request handling, persists its
// heartbeat and counters, and can be paused, resumed or triggered manually
// through the operational HTTP surface.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/services"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const triggerThrottleWindow = config.WorkerTriggerThrottle // Ignore manual triggers arriving faster than this

// Run outcomes recorded in RunRecord.Status
const (
	RunStatusSuccess = "Success"
	RunStatusFailure = "Failure"
	RunStatusSkipped = "Skipped"
)

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	NextRun         time.Time `json:"next_run"`
	TotalAnalyzed   int       `json:"total_analyzed"`
	TotalRecomputed int       `json:"total_recomputed"`
	TotalRuns       int       `json:"total_runs"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	Status     string        `json:"status"` // Success, Failure, Skipped
	Analyzed   int           `json:"analyzed"`
	Batches    int           `json:"batches"`
	Recomputed int           `json:"recomputed"`
	Details    string        `json:"details"`
}

// Worker drives the weak-point classifier and the dashboard aggregator on a schedule
type Worker struct {
	classifier    services.WeakPointClassifierInterface
	aggregator    services.DashboardAggregatorInterface
	workerService services.WorkerServiceInterface
	instance      string
	status        Status
	history       []RunRecord
	mu            sync.RWMutex
	runMu         sync.Mutex // serialises run cycles
	manualTrigger chan bool
	lastTrigger   time.Time
	cfg           *config.Config
	logger        *observability.Logger

	// recomputeFrom trails the start of the last completed run by WorkerRecomputeOverlap
	recomputeFrom time.Time

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(
	classifier services.WeakPointClassifierInterface,
	aggregator services.DashboardAggregatorInterface,
	workerService services.WorkerServiceInterface,
	instance string,
	cfg *config.Config,
	logger *observability.Logger,
) *Worker {
	if instance == "" {
		instance = "default"
	}
	maxHistory := cfg.Server.MaxHistory
	if maxHistory <= 0 {
		maxHistory = config.DefaultMaxHistory
	}

	return &Worker{
		classifier:    classifier,
		aggregator:    aggregator,
		workerService: workerService,
		instance:      instance,
		status:        Status{CurrentActivity: "Initialized"},
		history:       make([]RunRecord, 0, maxHistory),
		manualTrigger: make(chan bool, 1),
		cfg:           cfg,
		logger:        logger,
		timeNow:       time.Now,
	}
}

// Start runs the worker loop until ctx is cancelled or Shutdown is called
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.restorePauseState(ctx)

	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.status.IsRunning = true
	w.status.NextRun = w.timeNow().Add(w.cfg.Engine.Worker.RunInterval)
	w.mu.Unlock()
	defer close(done)

	w.updateDatabaseStatus(ctx)

	go w.heartbeatLoop(ctx)

	ticker := time.NewTicker(w.cfg.Engine.Worker.RunInterval)
	defer ticker.Stop()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance":     w.instance,
		"run_interval": w.cfg.Engine.Worker.RunInterval.String(),
		"paused":       w.GetStatus().IsPaused,
	})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.mu.Lock()
			w.status.IsRunning = false
			w.status.CurrentActivity = "Stopped"
			w.mu.Unlock()
			w.updateDatabaseStatus(context.WithoutCancel(ctx))
			return

		case <-ticker.C:
			w.run(ctx)

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.run(ctx)
		}
	}
}

// restorePauseState carries a pause persisted by a previous process over to this one
func (w *Worker) restorePauseState(ctx context.Context) {
	persisted, err := w.workerService.GetWorkerStatus(ctx, w.instance)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			// Expected on first startup
			w.logger.Debug(ctx, "Worker status not found on startup", map[string]interface{}{
				"instance": w.instance,
			})
			return
		}
		w.logger.Error(ctx, "Failed to load worker status on startup", err, map[string]interface{}{
			"instance": w.instance,
		})
		return
	}
	if persisted.IsPaused {
		w.mu.Lock()
		w.status.IsPaused = true
		w.status.CurrentActivity = "Paused"
		w.mu.Unlock()
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(config.WorkerHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.updateHeartbeat(ctx)
		}
	}
}

// updateHeartbeat updates the heartbeat in the database
func (w *Worker) updateHeartbeat(ctx context.Context) {
	if err := w.workerService.UpdateHeartbeat(ctx, w.instance); err != nil {
		w.logger.Error(ctx, "Failed to update heartbeat for worker", err, map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// run executes a scheduled cycle and schedules the next one
func (w *Worker) run(ctx context.Context) {
	w.RunOnce(ctx)
	w.mu.Lock()
	w.status.NextRun = w.timeNow().Add(w.cfg.Engine.Worker.RunInterval)
	w.mu.Unlock()
}

// RunOnce executes a single worker cycle: classify pending mistakes in batches,
// then recompute the dashboards of users who answered since the previous run.
// A paused worker records a skipped run and does nothing else.
func (w *Worker) RunOnce(ctx context.Context) RunRecord {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	ctx, span := observability.TraceWorkerFunction(ctx, "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	if w.GetStatus().IsPaused {
		span.SetAttributes(attribute.String("pause_reason", "Worker instance paused"))
		now := w.timeNow()
		record := RunRecord{StartTime: now, EndTime: now, Status: RunStatusSkipped, Details: "worker paused"}
		w.recordRunHistory(record)
		return record
	}

	start := w.timeNow()
	w.mu.Lock()
	w.status.LastRunStart = start
	w.status.CurrentActivity = "Classifying pending mistakes"
	since := w.recomputeFrom
	w.mu.Unlock()
	w.updateDatabaseStatus(ctx)

	record := RunRecord{StartTime: start}
	var errs []error

	analyzed, batches, err := w.classifyPending(ctx)
	record.Analyzed, record.Batches = analyzed, batches
	if err != nil {
		errs = append(errs, err)
		w.logger.Error(ctx, "Failed to classify pending mistakes", err, map[string]interface{}{
			"instance": w.instance,
			"analyzed": analyzed,
		})
	}

	w.updateActivity("Recomputing dashboards")
	recomputed, err := w.aggregator.RecomputeActiveSince(ctx, since)
	record.Recomputed = recomputed
	if err != nil {
		errs = append(errs, err)
		w.logger.Error(ctx, "Failed to recompute dashboards", err, map[string]interface{}{
			"instance": w.instance,
			"since":    since,
		})
	}

	runErr := errors.Join(errs...)
	record.EndTime = w.timeNow()
	record.Duration = record.EndTime.Sub(record.StartTime)
	record.Details = fmt.Sprintf("analyzed %d mistakes in %d batches, recomputed %d dashboards", analyzed, batches, recomputed)
	if runErr != nil {
		record.Status = RunStatusFailure
		record.Details += ": " + runErr.Error()
	} else {
		record.Status = RunStatusSuccess
	}

	w.mu.Lock()
	w.status.LastRunFinish = record.EndTime
	w.status.TotalAnalyzed += analyzed
	w.status.TotalRecomputed += recomputed
	w.status.CurrentActivity = "Idle"
	if runErr != nil {
		w.status.LastRunError = runErr.Error()
	} else {
		w.status.LastRunError = ""
		w.recomputeFrom = start.Add(-config.WorkerRecomputeOverlap)
	}
	w.mu.Unlock()

	span.SetAttributes(
		attribute.Int("worker.analyzed", analyzed),
		attribute.Int("worker.batches", batches),
		attribute.Int("worker.recomputed", recomputed),
	)
	w.logger.Info(ctx, "Worker run finished", map[string]interface{}{
		"instance":   w.instance,
		"status":     record.Status,
		"analyzed":   analyzed,
		"batches":    batches,
		"recomputed": recomputed,
		"duration":   record.Duration.String(),
	})

	w.recordRunHistory(record)
	w.updateDatabaseStatus(ctx)
	return record
}

// classifyPending drains full batches until one comes back short, the context ends or
// the per-run batch budget is spent.
func (w *Worker) classifyPending(ctx context.Context) (analyzed, batches int, err error) {
	batchSize := w.cfg.Engine.Classifier.BatchSize
	for batches < w.cfg.Engine.Worker.MaxBatchesPerRun {
		if ctx.Err() != nil {
			return analyzed, batches, contextutils.WrapError(contextutils.ErrTimeout, "worker run cancelled")
		}
		n, err := w.classifier.ClassifyPending(ctx, batchSize)
		batches++
		analyzed += n
		if err != nil {
			return analyzed, batches, err
		}
		if n < batchSize {
			break
		}
	}
	return analyzed, batches, nil
}

// recordRunHistory records the run in history and trims the slice
func (w *Worker) recordRunHistory(record RunRecord) {
	maxHistory := w.cfg.Server.MaxHistory
	if maxHistory <= 0 {
		maxHistory = config.DefaultMaxHistory
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.TotalRuns++
	w.history = append(w.history, record)
	if len(w.history) > maxHistory {
		w.history = w.history[len(w.history)-maxHistory:]
	}
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns the worker's run history, oldest first
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// TriggerManualRun asks the loop for an immediate run. It reports false when a
// trigger is already pending or the previous one arrived within the throttle window.
func (w *Worker) TriggerManualRun(ctx context.Context) bool {
	w.mu.Lock()
	now := w.timeNow()
	if !w.lastTrigger.IsZero() && now.Sub(w.lastTrigger) < triggerThrottleWindow {
		w.mu.Unlock()
		w.logger.Info(ctx, "Manual trigger throttled", map[string]interface{}{
			"instance": w.instance,
		})
		return false
	}
	w.mu.Unlock()

	select {
	case w.manualTrigger <- true:
		w.mu.Lock()
		w.lastTrigger = now
		w.mu.Unlock()
		w.logger.Info(ctx, "Manual trigger sent to worker", map[string]interface{}{
			"instance": w.instance,
		})
		return true
	default:
		w.logger.Info(ctx, "Manual trigger already pending for worker", map[string]interface{}{
			"instance": w.instance,
		})
		return false
	}
}

// Pause stops future runs until Resume is called; the pause survives restarts
func (w *Worker) Pause(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = true
	w.status.CurrentActivity = "Paused"
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
	w.updateDatabaseStatus(ctx)
}

// Resume resumes the worker
func (w *Worker) Resume(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = false
	w.status.CurrentActivity = "Idle"
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
	w.updateDatabaseStatus(ctx)
}

// Shutdown stops the loop started by Start and waits for it to exit or for ctx to expire
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.RLock()
	cancel, done := w.cancel, w.done
	w.mu.RUnlock()

	w.logger.Info(ctx, "Worker starting shutdown", map[string]interface{}{
		"instance": w.instance,
	})
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return contextutils.WrapError(contextutils.ErrTimeout, "worker did not stop before shutdown deadline")
	}

	w.logger.Info(ctx, "Worker shutdown completed", map[string]interface{}{
		"instance": w.instance,
	})
	return nil
}

// updateDatabaseStatus updates the worker status in the database
func (w *Worker) updateDatabaseStatus(ctx context.Context) {
	w.mu.RLock()
	s := w.status
	w.mu.RUnlock()

	now := w.timeNow()
	dbStatus := &models.WorkerStatus{
		WorkerInstance:  w.instance,
		IsRunning:       s.IsRunning,
		IsPaused:        s.IsPaused,
		CurrentActivity: optionalString(s.CurrentActivity),
		LastHeartbeat:   &now,
		LastRunStart:    optionalTime(s.LastRunStart),
		LastRunFinish:   optionalTime(s.LastRunFinish),
		LastRunError:    optionalString(s.LastRunError),
		TotalAnalyzed:   s.TotalAnalyzed,
		TotalRecomputed: s.TotalRecomputed,
		TotalRuns:       s.TotalRuns,
	}

	if err := w.workerService.UpdateWorkerStatus(ctx, dbStatus); err != nil {
		w.logger.Error(ctx, "Failed to update worker status in database", err, map[string]interface{}{
			"instance": w.instance,
		})
	}
}

func (w *Worker) updateActivity(activity string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.CurrentActivity = activity
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
