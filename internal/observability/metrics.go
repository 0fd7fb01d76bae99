package observability

import (
	"context"

	"quizinsight/internal/config"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes an OpenTelemetry MeterProvider exporting over OTLP
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *sdkmetric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var exporter sdkmetric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to create otlp grpc metric exporter")
		}
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to create otlp http metric exporter")
		}
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

// EngineMetrics holds the counters emitted by the recorder, classifier, scorer and aggregator.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	attempts        metric.Int64Counter
	conflicts       metric.Int64Counter
	analyzed        metric.Int64Counter
	placements      metric.Int64Counter
	recomputes      metric.Int64Counter
	inconsistencies metric.Int64Counter
}

// NewEngineMetrics registers the engine instruments on the given meter provider
func NewEngineMetrics(provider metric.MeterProvider) (*EngineMetrics, error) {
	meter := provider.Meter(instrumentationName)
	m := &EngineMetrics{}

	var err error
	if m.attempts, err = meter.Int64Counter("quizinsight.attempts.recorded",
		metric.WithDescription("Attempts processed by the recorder, by outcome")); err != nil {
		return nil, err
	}
	if m.conflicts, err = meter.Int64Counter("quizinsight.attempts.conflicts",
		metric.WithDescription("Optimistic-concurrency conflicts hit while recording attempts")); err != nil {
		return nil, err
	}
	if m.analyzed, err = meter.Int64Counter("quizinsight.mistakes.analyzed",
		metric.WithDescription("Mistake records linked to a weak point")); err != nil {
		return nil, err
	}
	if m.placements, err = meter.Int64Counter("quizinsight.placement.scored",
		metric.WithDescription("Placement tests scored, by recommended tier")); err != nil {
		return nil, err
	}
	if m.recomputes, err = meter.Int64Counter("quizinsight.dashboard.recomputed",
		metric.WithDescription("Dashboard statistics recomputed")); err != nil {
		return nil, err
	}
	if m.inconsistencies, err = meter.Int64Counter("quizinsight.dashboard.inconsistencies",
		metric.WithDescription("Contradictory stored aggregates clamped during recompute, by kind")); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNoopEngineMetrics returns instruments bound to a no-op provider
func NewNoopEngineMetrics() *EngineMetrics {
	m, _ := NewEngineMetrics(noop.NewMeterProvider())
	return m
}

// AttemptRecorded counts an attempt with outcome "created", "amended" or "skipped"
func (m *EngineMetrics) AttemptRecorded(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ConflictHit counts one lost compare-and-swap
func (m *EngineMetrics) ConflictHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}

// MistakesAnalyzed counts records linked by one classifier batch
func (m *EngineMetrics) MistakesAnalyzed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.analyzed.Add(ctx, int64(n))
}

// PlacementScored counts one scored placement test
func (m *EngineMetrics) PlacementScored(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	m.placements.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// DashboardRecomputed counts one dashboard write
func (m *EngineMetrics) DashboardRecomputed(ctx context.Context) {
	if m == nil {
		return
	}
	m.recomputes.Add(ctx, 1)
}

// InconsistencyDetected counts one clamped aggregate
func (m *EngineMetrics) InconsistencyDetected(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.inconsistencies.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
