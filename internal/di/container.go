// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"quizinsight/internal/config"
	"quizinsight/internal/database"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	"quizinsight/internal/services"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel"
)

// Service names registered in the container
const (
	ServiceCatalog      = "catalog"
	ServiceUsers        = "users"
	ServiceRanking      = "ranking"
	ServiceHistory      = "history"
	ServiceMistakes     = "mistakes"
	ServiceWeakPoints   = "weak_points"
	ServiceDashboards   = "dashboards"
	ServicePlacements   = "placement_results"
	ServiceRecorder     = "recorder"
	ServiceIngestor     = "ingestor"
	ServiceClassifier   = "classifier"
	ServicePlacement    = "placement"
	ServiceAggregator   = "aggregator"
	ServiceWorkerStatus = "worker"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetAttemptRecorder() (services.AttemptRecorderInterface, error)
	GetAnswerIngestor() (*services.AnswerIngestor, error)
	GetClassifier() (services.WeakPointClassifierInterface, error)
	GetPlacementService() (services.PlacementServiceInterface, error)
	GetDashboardAggregator() (services.DashboardAggregatorInterface, error)
	GetWorkerService() (services.WorkerServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
	migrate       bool
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// Option customises a ServiceContainer
type Option func(*ServiceContainer)

// WithoutMigrations makes Initialize open the database without applying migrations
func WithoutMigrations() Option {
	return func(sc *ServiceContainer) { sc.migrate = false }
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, opts ...Option) *ServiceContainer {
	sc := &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
		migrate:  true,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	var (
		db  *sql.DB
		err error
	)
	if sc.migrate {
		db, err = sc.dbManager.InitDBWithConfig(ctx, sc.cfg.Database)
	} else {
		db, err = sc.dbManager.InitDBWithoutMigrations(ctx, sc.cfg.Database)
	}
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetAttemptRecorder returns the attempt recorder
func (sc *ServiceContainer) GetAttemptRecorder() (services.AttemptRecorderInterface, error) {
	return GetServiceAs[services.AttemptRecorderInterface](sc, ServiceRecorder)
}

// GetAnswerIngestor returns the answer ingestor
func (sc *ServiceContainer) GetAnswerIngestor() (*services.AnswerIngestor, error) {
	return GetServiceAs[*services.AnswerIngestor](sc, ServiceIngestor)
}

// GetClassifier returns the weak-point classifier
func (sc *ServiceContainer) GetClassifier() (services.WeakPointClassifierInterface, error) {
	return GetServiceAs[services.WeakPointClassifierInterface](sc, ServiceClassifier)
}

// GetPlacementService returns the placement service
func (sc *ServiceContainer) GetPlacementService() (services.PlacementServiceInterface, error) {
	return GetServiceAs[services.PlacementServiceInterface](sc, ServicePlacement)
}

// GetDashboardAggregator returns the dashboard aggregator
func (sc *ServiceContainer) GetDashboardAggregator() (services.DashboardAggregatorInterface, error) {
	return GetServiceAs[services.DashboardAggregatorInterface](sc, ServiceAggregator)
}

// GetWorkerService returns the worker status service
func (sc *ServiceContainer) GetWorkerService() (services.WorkerServiceInterface, error) {
	return GetServiceAs[services.WorkerServiceInterface](sc, ServiceWorkerStatus)
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs the registered shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies on top of sc.db
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	engine := sc.cfg.Engine

	metrics, err := observability.NewEngineMetrics(otel.GetMeterProvider())
	if err != nil {
		sc.logger.Warn(ctx, "Engine metrics unavailable, continuing without them", map[string]interface{}{
			"error": err.Error(),
		})
		metrics = observability.NewNoopEngineMetrics()
	}

	// Collaborators
	catalog := sc.buildCatalog(engine.Catalog)
	sc.services[ServiceCatalog] = catalog
	ranking := sc.buildRanking(engine.Ranking)
	sc.services[ServiceRanking] = ranking
	users := services.NewSQLUserDirectory(sc.db)
	sc.services[ServiceUsers] = users
	history := services.NewAttemptHistoryStore(sc.db, sc.logger)
	sc.services[ServiceHistory] = history

	// Repositories
	mistakes := services.NewMistakeRepository(sc.db, sc.logger)
	sc.services[ServiceMistakes] = mistakes
	weakPoints := services.NewWeakPointRepository(sc.db, sc.logger)
	sc.services[ServiceWeakPoints] = weakPoints
	dashboards := services.NewDashboardRepository(sc.db, sc.logger)
	sc.services[ServiceDashboards] = dashboards
	placements := services.NewPlacementResultRepository(sc.db, sc.logger)
	sc.services[ServicePlacements] = placements

	// Engine
	recorder := services.NewAttemptRecorder(users, catalog, mistakes, engine, metrics, sc.logger)
	sc.services[ServiceRecorder] = recorder
	sc.services[ServiceIngestor] = services.NewAnswerIngestor(recorder, services.NewSQLAttemptTransactor(sc.db, sc.logger), sc.logger)
	sc.services[ServiceClassifier] = services.NewWeakPointClassifier(mistakes, weakPoints, catalog, engine.Classifier, metrics, sc.logger)

	scorer, err := services.NewPlacementScorer(engine.Placement)
	if err != nil {
		return err
	}
	sc.services[ServicePlacement] = services.NewPlacementService(scorer, users, placements, metrics, sc.logger)
	sc.services[ServiceAggregator] = services.NewDashboardAggregator(users, history, mistakes, ranking, placements, dashboards, engine.Points, metrics, sc.logger)

	sc.services[ServiceWorkerStatus] = services.NewWorkerServiceWithLogger(sc.db, sc.logger)

	sc.logger.Debug(ctx, "Engine services initialized", map[string]interface{}{
		"catalog_mode": engine.Catalog.Mode,
		"ranking_mode": engine.Ranking.Mode,
	})
	return nil
}

func (sc *ServiceContainer) buildCatalog(cfg config.RemoteConfig) serviceinterfaces.QuizCatalog {
	if cfg.Mode == config.ModeHTTP {
		return services.NewHTTPQuizCatalog(cfg)
	}
	return services.NewSQLQuizCatalog(sc.db, sc.logger)
}

func (sc *ServiceContainer) buildRanking(cfg config.RemoteConfig) serviceinterfaces.Ranking {
	if cfg.Mode == config.ModeHTTP {
		return services.NewHTTPRanking(cfg)
	}
	return services.NewSQLRanking(sc.db)
}
