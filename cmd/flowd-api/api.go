// Package main provides the flowd API server implementation.
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/aubira/flowd/pkg/cmd"
	"github.com/aubira/flowd/pkg/eventbus"
	"github.com/aubira/flowd/pkg/orchestrator"
	"github.com/aubira/flowd/pkg/otelhelper"
	"github.com/aubira/flowd/pkg/persistence"
	"github.com/aubira/flowd/pkg/web"
)

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
}

func NewAPI(ctx context.Context, logger *slog.Logger, gateway persistence.Gateway, eventBus eventbus.Bus) *API {
	proxy := cmd.NewAIProxy(gateway, logger)
	registry := cmd.NewRegistry(logger, proxy)

	opts := []orchestrator.Option{orchestrator.WithGateway(gateway)}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err := otelhelper.NewTracer(ctx, "flowd-api")
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
		} else {
			opts = append(opts, orchestrator.WithTracer(tracer))
		}
	}

	orch := orchestrator.New(registry, eventBus, logger, opts...)

	handlers := web.NewAPIHandlers(orch, gateway, proxy,
		validator.New(validator.WithRequiredStructEnabled()), logger)

	return &API{logger: logger, handlers: handlers}
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowd API")
	})

	e := app.Group("/executions")
	e.Post("/", a.handlers.ExecuteWorkflow)
	e.Get("/active", a.handlers.GetActiveExecutions)
	e.Get("/:id", a.handlers.GetExecution)
	e.Get("/:id/status", a.handlers.GetExecutionStatus)
	e.Post("/:id/pause", a.handlers.PauseExecution)
	e.Post("/:id/resume", a.handlers.ResumeExecution)
	e.Post("/:id/cancel", a.handlers.CancelExecution)

	app.Get("/workflows/:id/executions", a.handlers.ListWorkflowExecutions)
	app.Get("/users/:id/usage", a.handlers.GetUserUsage)
	app.Get("/health", a.handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
