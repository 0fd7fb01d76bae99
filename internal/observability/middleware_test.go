package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "quizinsight/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinErrorAttributes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	router := gin.New()
	router.Use(otelgin.Middleware("test", otelgin.WithTracerProvider(tp)), GinErrorAttributes())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(contextutils.ErrRecordNotFound)
		c.Status(http.StatusNotFound)
	})

	for _, path := range []string{"/ok", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.NotEqual(t, codes.Error, spans[0].Status().Code)

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	attrs := map[string]string{}
	for _, kv := range failed.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "RECORD_NOT_FOUND", attrs["error.code"])
	assert.Equal(t, "info", attrs["error.severity"])
}

func TestDetermineErrorSeverity(t *testing.T) {
	assert.Equal(t, "error", determineErrorSeverity(500, nil))
	assert.Equal(t, "warn", determineErrorSeverity(400, nil))
	assert.Equal(t, "warn", determineErrorSeverity(409, []*gin.Error{{Err: contextutils.ErrConflict}}))
}
