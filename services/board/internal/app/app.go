package app

import (
	"context"
	"fmt"

	"github.com/appetiteclub/kitchenboard/internal/boardhttp"
	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/internal/engine"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
)

const (
	AppName    = "board"
	AppVersion = "0.1.0"
)

// App encapsulates the board service application
type App struct {
	config   *aqm.Config
	logger   aqm.Logger
	settings Settings
	engine   *engine.Engine
	micro    *aqm.Micro
}

// New builds the app from settings already loaded from config. The logger
// is expected to be built from settings.LogLevel.
func New(config *aqm.Config, settings Settings, logger aqm.Logger) *App {
	if logger == nil {
		logger = aqm.NewLogger(settings.LogLevel)
	}
	return &App{
		config:   config,
		logger:   logger,
		settings: settings,
	}
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	eng, err := engine.New(a.settings.Engine, clock.Real(), a.logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	a.engine = eng

	handler := boardhttp.NewHandler(eng.Board, eng.Availability, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: a.logger,
	})

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(eng.Board, eng.Availability),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	a.logger.Info("board engine ready",
		"transport", string(a.settings.Engine.Transport),
		"kitchen_url", a.settings.Engine.KitchenURL,
	)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
