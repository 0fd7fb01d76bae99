// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"sync"

	"quizinsight/internal/config"
	"quizinsight/internal/di"
	"quizinsight/internal/observability"
	contextutils "quizinsight/internal/utils"
)

// Env is the shared state of one adm invocation. The database is only opened by
// commands that need it.
type Env struct {
	Cfg    *config.Config
	Logger *observability.Logger

	mu        sync.Mutex
	container *di.ServiceContainer
}

// NewEnv creates an Env
func NewEnv(cfg *config.Config, logger *observability.Logger) *Env {
	return &Env{Cfg: cfg, Logger: logger}
}

// Container returns the initialized service container, connecting on first use
func (e *Env) Container(ctx context.Context) (*di.ServiceContainer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.container != nil {
		return e.container, nil
	}
	container := di.NewServiceContainer(e.Cfg, e.Logger, di.WithoutMigrations())
	if err := container.Initialize(ctx); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to connect to %s", contextutils.MaskDatabaseURL(e.Cfg.Database.URL))
	}
	e.container = container
	return container, nil
}

// Close releases the container if one was opened
func (e *Env) Close(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.container == nil {
		return
	}
	if err := e.container.Shutdown(ctx); err != nil {
		e.Logger.Warn(ctx, "Failed to shut down service container", map[string]interface{}{"error": err.Error()})
	}
	e.container = nil
}
