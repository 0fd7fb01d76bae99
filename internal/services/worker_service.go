package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// HeartbeatStaleAfter is how old a heartbeat may be before an instance counts as unhealthy
const HeartbeatStaleAfter = 5 * time.Minute

// WorkerServiceInterface defines the persisted state of the analysis worker
type WorkerServiceInterface interface {
	serviceinterfaces.WorkerStatusRepository
	GetAllWorkerStatuses(ctx context.Context) ([]models.WorkerStatus, error)
	IsWorkerHealthy(ctx context.Context, instance string) (bool, error)
}

// WorkerService implements worker status persistence
type WorkerService struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ WorkerServiceInterface = (*WorkerService)(nil)

// NewWorkerServiceWithLogger creates a new WorkerService instance with logger
func NewWorkerServiceWithLogger(db *sql.DB, logger *observability.Logger) *WorkerService {
	return &WorkerService{
		db:     db,
		logger: logger,
	}
}

// UpdateWorkerStatus upserts the status row of status.WorkerInstance
func (s *WorkerService) UpdateWorkerStatus(ctx context.Context, status *models.WorkerStatus) (err error) {
	activity := ""
	if status.CurrentActivity != nil {
		activity = *status.CurrentActivity
	}

	ctx, span := observability.TraceWorkerFunction(ctx, "update_worker_status",
		attribute.String("worker.instance", status.WorkerInstance),
		attribute.Bool("worker.is_running", status.IsRunning),
		attribute.Bool("worker.is_paused", status.IsPaused),
		attribute.String("worker.activity", activity),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_status (
			worker_instance, is_running, is_paused, current_activity,
			last_heartbeat, last_run_start, last_run_finish, last_run_error,
			total_analyzed, total_recomputed, total_runs, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (worker_instance) DO UPDATE SET
			is_running = EXCLUDED.is_running,
			is_paused = EXCLUDED.is_paused,
			current_activity = EXCLUDED.current_activity,
			last_heartbeat = EXCLUDED.last_heartbeat,
			last_run_start = EXCLUDED.last_run_start,
			last_run_finish = EXCLUDED.last_run_finish,
			last_run_error = EXCLUDED.last_run_error,
			total_analyzed = EXCLUDED.total_analyzed,
			total_recomputed = EXCLUDED.total_recomputed,
			total_runs = EXCLUDED.total_runs,
			updated_at = EXCLUDED.updated_at
	`, status.WorkerInstance, status.IsRunning, status.IsPaused, status.CurrentActivity,
		status.LastHeartbeat, status.LastRunStart, status.LastRunFinish, status.LastRunError,
		status.TotalAnalyzed, status.TotalRecomputed, status.TotalRuns)
	if err != nil {
		s.logger.Error(ctx, "Failed to update worker status", err, map[string]interface{}{
			"worker_instance": status.WorkerInstance,
			"activity":        activity,
		})
		return contextutils.WrapErrorf(err, "failed to update worker status for instance %s", status.WorkerInstance)
	}

	s.logger.Debug(ctx, "Worker status updated", map[string]interface{}{
		"worker_instance": status.WorkerInstance,
		"is_running":      status.IsRunning,
		"is_paused":       status.IsPaused,
		"activity":        activity,
	})
	return nil
}

const workerStatusColumns = `worker_instance, is_running, is_paused, current_activity,
	last_heartbeat, last_run_start, last_run_finish, last_run_error,
	total_analyzed, total_recomputed, total_runs, updated_at`

func scanWorkerStatus(row rowScanner) (*models.WorkerStatus, error) {
	var (
		status   models.WorkerStatus
		activity sql.NullString
		runError sql.NullString
		beat     sql.NullTime
		start    sql.NullTime
		finish   sql.NullTime
	)
	if err := row.Scan(&status.WorkerInstance, &status.IsRunning, &status.IsPaused, &activity,
		&beat, &start, &finish, &runError,
		&status.TotalAnalyzed, &status.TotalRecomputed, &status.TotalRuns, &status.UpdatedAt); err != nil {
		return nil, err
	}
	status.CurrentActivity = nullStringPtr(activity)
	status.LastRunError = nullStringPtr(runError)
	status.LastHeartbeat = nullTimePtr(beat)
	status.LastRunStart = nullTimePtr(start)
	status.LastRunFinish = nullTimePtr(finish)
	return &status, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

// GetWorkerStatus retrieves worker status by instance
func (s *WorkerService) GetWorkerStatus(ctx context.Context, instance string) (result0 *models.WorkerStatus, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "get_worker_status", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	status, err := scanWorkerStatus(s.db.QueryRowContext(ctx, `
		SELECT `+workerStatusColumns+` FROM worker_status WHERE worker_instance = $1
	`, instance))
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug(ctx, "Worker status not found", map[string]interface{}{"worker_instance": instance})
		return nil, contextutils.NotFoundf("worker status for instance %s", instance)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to get worker status for instance %s", instance)
	}
	return status, nil
}

// GetAllWorkerStatuses retrieves all worker statuses
func (s *WorkerService) GetAllWorkerStatuses(ctx context.Context) (result0 []models.WorkerStatus, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "get_all_worker_statuses")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+workerStatusColumns+` FROM worker_status ORDER BY worker_instance`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get all worker statuses")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var statuses []models.WorkerStatus
	for rows.Next() {
		status, err := scanWorkerStatus(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan worker status row")
		}
		statuses = append(statuses, *status)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating worker status rows")
	}
	return statuses, nil
}

// UpdateHeartbeat updates the heartbeat for a worker instance
func (s *WorkerService) UpdateHeartbeat(ctx context.Context, instance string) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "update_heartbeat", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_status (worker_instance, last_heartbeat, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (worker_instance) DO UPDATE SET
			last_heartbeat = EXCLUDED.last_heartbeat,
			updated_at = EXCLUDED.updated_at
	`, instance)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to update heartbeat for instance %s", instance)
	}
	return nil
}

// IsWorkerHealthy reports whether the instance sent a heartbeat within HeartbeatStaleAfter
func (s *WorkerService) IsWorkerHealthy(ctx context.Context, instance string) (result0 bool, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "is_worker_healthy", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	var lastHeartbeat sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT last_heartbeat FROM worker_status WHERE worker_instance = $1
	`, instance).Scan(&lastHeartbeat)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, contextutils.WrapErrorf(err, "failed to check worker health for instance %s", instance)
	}
	if !lastHeartbeat.Valid {
		return false, nil
	}
	return time.Since(lastHeartbeat.Time) < HeartbeatStaleAfter, nil
}
