package bootstrap

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"mailgate_server/config"
	"mailgate_server/pkg/logger"
)

// Run modes. "api" serves only the operational endpoints, "worker" runs
// only the pipeline, "all" runs both in one process.
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// App is the assembled pipeline: stage pools, stream consumer, and the
// operational HTTP surface.
type App struct {
	deps   *Dependencies
	fiber  *fiber.App
	mode   string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp wires the pipeline. The returned cleanup closes the backing
// stores and must run after Shutdown.
func NewApp(cfg *config.Config, mode string) (*App, func(), error) {
	deps, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:               "mailgate",
		DisableStartupMessage: cfg.Environment == "production",
	})
	fiberApp.Use(recover.New())
	deps.HealthHandler.Register(fiberApp)

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		deps:   deps,
		fiber:  fiberApp,
		mode:   mode,
		ctx:    ctx,
		cancel: cancel,
	}
	return app, deps.Close, nil
}

// Start brings up the configured components and blocks until shutdown.
func (a *App) Start() error {
	if a.mode != ModeAPI {
		a.deps.Pool.Start()
		a.deps.Consumer.Start(a.ctx)
		logger.Info("Pipeline consuming as %s in group %s",
			a.deps.Config.ConsumerName, a.deps.Config.ConsumerGroup)
	}

	if a.mode == ModeWorker {
		<-a.ctx.Done()
		return nil
	}

	addr := ":" + a.deps.Config.Port
	logger.Info("Serving on %s", addr)
	return a.fiber.Listen(addr)
}

// Shutdown stops consumption, drains the pools, and closes the listener.
func (a *App) Shutdown() error {
	a.cancel()
	if a.mode != ModeAPI {
		a.deps.Pool.Stop()
	}
	if a.mode == ModeWorker {
		return nil
	}
	return a.fiber.Shutdown()
}
