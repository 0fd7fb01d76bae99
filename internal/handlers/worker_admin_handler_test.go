package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	contextutils "quizinsight/internal/utils"
	"quizinsight/internal/version"
	"quizinsight/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWorkerController struct {
	mock.Mock
}

func (m *mockWorkerController) GetInstance() string {
	return "test-instance"
}

func (m *mockWorkerController) GetStatus() worker.Status {
	args := m.Called()
	return args.Get(0).(worker.Status)
}

func (m *mockWorkerController) GetHistory() []worker.RunRecord {
	args := m.Called()
	return args.Get(0).([]worker.RunRecord)
}

func (m *mockWorkerController) TriggerManualRun(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *mockWorkerController) Pause(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockWorkerController) Resume(ctx context.Context) {
	m.Called(ctx)
}

type mockWorkerService struct {
	mock.Mock
}

func (m *mockWorkerService) UpdateWorkerStatus(ctx context.Context, status *models.WorkerStatus) error {
	return m.Called(ctx, status).Error(0)
}

func (m *mockWorkerService) GetWorkerStatus(ctx context.Context, instance string) (*models.WorkerStatus, error) {
	args := m.Called(ctx, instance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkerStatus), args.Error(1)
}

func (m *mockWorkerService) UpdateHeartbeat(ctx context.Context, instance string) error {
	return m.Called(ctx, instance).Error(0)
}

func (m *mockWorkerService) GetAllWorkerStatuses(ctx context.Context) ([]models.WorkerStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkerStatus), args.Error(1)
}

func (m *mockWorkerService) IsWorkerHealthy(ctx context.Context, instance string) (bool, error) {
	args := m.Called(ctx, instance)
	return args.Bool(0), args.Error(1)
}

func newTestRouter(t *testing.T) (*gin.Engine, *mockWorkerController, *mockWorkerService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	controller := &mockWorkerController{}
	workerService := &mockWorkerService{}
	logger := observability.NewNopLogger()
	handler := NewWorkerAdminHandlerWithLogger(controller, workerService, logger)
	return NewWorkerRouter(config.DefaultConfig(), handler, logger), controller, workerService
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndVersion(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	w = serve(router, http.MethodGet, "/v1/version")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, version.Version, body["version"])
}

func TestSecurityHeaders(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/v1/health")
	assert.Equal(t, config.DefaultCSP, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestGetWorkerStatus(t *testing.T) {
	router, controller, workerService := newTestRouter(t)
	controller.On("GetStatus").Return(worker.Status{IsRunning: true, TotalAnalyzed: 7})
	workerService.On("IsWorkerHealthy", mock.Anything, "test-instance").Return(true, nil)

	w := serve(router, http.MethodGet, "/v1/admin/worker/status")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "test-instance", body["instance"])
	assert.Equal(t, true, body["healthy"])
	status := body["status"].(map[string]interface{})
	assert.Equal(t, true, status["is_running"])
	assert.EqualValues(t, 7, status["total_analyzed"])
}

func TestGetWorkerStatus_HealthCheckFailureStillResponds(t *testing.T) {
	router, controller, workerService := newTestRouter(t)
	controller.On("GetStatus").Return(worker.Status{})
	workerService.On("IsWorkerHealthy", mock.Anything, "test-instance").Return(false, contextutils.ErrDatabaseQuery)

	w := serve(router, http.MethodGet, "/v1/admin/worker/status")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["healthy"])
}

func TestGetWorkerHistory(t *testing.T) {
	router, controller, _ := newTestRouter(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	controller.On("GetHistory").Return([]worker.RunRecord{
		{StartTime: start, Status: worker.RunStatusSuccess, Analyzed: 3},
		{StartTime: start.Add(time.Hour), Status: worker.RunStatusSkipped},
	})

	w := serve(router, http.MethodGet, "/v1/admin/worker/history")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 2, body["count"])
	history := body["history"].([]interface{})
	assert.Equal(t, worker.RunStatusSuccess, history[0].(map[string]interface{})["status"])
}

func TestGetWorkerInstances(t *testing.T) {
	router, _, workerService := newTestRouter(t)
	workerService.On("GetAllWorkerStatuses", mock.Anything).Return([]models.WorkerStatus{
		{WorkerInstance: "a", IsRunning: true},
		{WorkerInstance: "b", IsPaused: true},
	}, nil)

	w := serve(router, http.MethodGet, "/v1/admin/worker/instances")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["workers"], 2)
}

func TestGetWorkerInstances_DatabaseUnavailable(t *testing.T) {
	router, _, workerService := newTestRouter(t)
	workerService.On("GetAllWorkerStatuses", mock.Anything).
		Return(nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "pool exhausted"))

	w := serve(router, http.MethodGet, "/v1/admin/worker/instances")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(contextutils.ErrorCodeDatabaseConnection), decodeBody(t, w)["code"])
}

func TestTriggerWorkerRun(t *testing.T) {
	router, controller, _ := newTestRouter(t)
	controller.On("TriggerManualRun", mock.Anything).Return(true).Once()
	controller.On("TriggerManualRun", mock.Anything).Return(false).Once()

	assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/v1/admin/worker/trigger").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodPost, "/v1/admin/worker/trigger").Code)
	controller.AssertExpectations(t)
}

func TestPauseAndResume(t *testing.T) {
	router, controller, _ := newTestRouter(t)
	controller.On("Pause", mock.Anything).Return()
	controller.On("Resume", mock.Anything).Return()
	controller.On("GetStatus").Return(worker.Status{IsPaused: true}).Once()
	controller.On("GetStatus").Return(worker.Status{}).Once()

	w := serve(router, http.MethodPost, "/v1/admin/worker/pause")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["status"].(map[string]interface{})["is_paused"])

	w = serve(router, http.MethodPost, "/v1/admin/worker/resume")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["status"].(map[string]interface{})["is_paused"])
	controller.AssertExpectations(t)
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code contextutils.ErrorCode
		want int
	}{
		{contextutils.ErrorCodeMalformedImport, http.StatusBadRequest},
		{contextutils.ErrorCodeInvalidInput, http.StatusBadRequest},
		{contextutils.ErrorCodeRecordNotFound, http.StatusNotFound},
		{contextutils.ErrorCodeConflict, http.StatusConflict},
		{contextutils.ErrorCodeInconsistency, http.StatusUnprocessableEntity},
		{contextutils.ErrorCodeTimeout, http.StatusGatewayTimeout},
		{contextutils.ErrorCodeServiceUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrorCodeDatabaseQuery, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}
