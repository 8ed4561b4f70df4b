// Package main provides the flowd one-shot workflow runner.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/aubira/flowd/pkg/cmd"
	"github.com/aubira/flowd/pkg/log"
	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/orchestrator"
)

func main() {
	logger := log.WithModule("runner")

	command := &cli.Command{
		Name:                  "flowd-runner",
		Usage:                 "Run a workflow definition file to completion",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow-file",
				Aliases:  []string{"f"},
				Usage:    "Path to the workflow definition JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "inputs",
				Usage: "Initial run variables as a JSON object",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:    "user-id",
				Usage:   "User the run is attributed to",
				Value:   "local",
				Sources: cli.EnvVars("FLOWD_USER_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("runner")

	raw, err := os.ReadFile(command.String("workflow-file"))
	if err != nil {
		return fmt.Errorf("failed to read workflow file: %w", err)
	}

	workflow, err := models.ParseWorkflow(raw)
	if err != nil {
		return err
	}

	var inputs map[string]any
	if err := json.Unmarshal([]byte(command.String("inputs")), &inputs); err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}

	gateway := cmd.NewPersistence(command.String("database-url"))

	defer func() {
		if err := gateway.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus("sync", logger)
	proxy := cmd.NewAIProxy(gateway, logger)
	registry := cmd.NewRegistry(logger, proxy)

	orch := orchestrator.New(registry, eventBus, logger, orchestrator.WithGateway(gateway))

	result, err := orch.Execute(ctx, workflow, inputs, command.String("user-id"))
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))

	if result.Status != models.ExecutionStatusCompleted {
		return fmt.Errorf("execution finished with status %s", result.Status)
	}

	return nil
}
