package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascadehq/cascade/pkg/infra/cache"
	"github.com/cascadehq/cascade/pkg/infra/logger"
	"github.com/cascadehq/cascade/pkg/infra/store"
	"github.com/cascadehq/cascade/pkg/schedule"
	"github.com/cascadehq/cascade/pkg/trigger"
	"github.com/cascadehq/cascade/pkg/workflow"
)

func NewServeCommand(root *RootCommand) *cobra.Command {
	var definitionsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration platform",
		Long: `Run the engine, scheduler, and trigger pipeline as a long-lived
process.

Workflow definitions are loaded from --definitions at startup and
registered in the configured store. Schedules and triggers persist
across restarts when the sqlite storage driver is configured.`,
		Example: `  # Run with definitions from a directory
  cascade serve --definitions ./workflows

  # Run fully in memory
  CASCADE_STORAGE_DRIVER=memory cascade serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, definitionsDir)
		},
	}

	cmd.Flags().StringVar(&definitionsDir, "definitions", "", "Directory of workflow definition files to register")

	return cmd
}

func runServe(ctx context.Context, root *RootCommand, definitionsDir string) error {
	cfg := root.Config()

	var (
		provider     workflow.DefinitionProvider
		registerFunc func(context.Context, *workflow.WorkflowDefinition) error
		scheduleRepo schedule.ScheduleRepository
		triggerRepo  trigger.TriggerRepository
	)

	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer db.Close()

		defStore := store.NewSQLiteDefinitionStore(db)
		cached := cache.NewCachedDefinitionProvider(defStore, 5*time.Minute, 256)
		provider = cached
		registerFunc = func(ctx context.Context, def *workflow.WorkflowDefinition) error {
			if err := defStore.Register(ctx, def); err != nil {
				return err
			}
			cached.Invalidate(def.ID)
			return nil
		}
		scheduleRepo = store.NewSQLiteScheduleStore(db)
		triggerRepo = store.NewSQLiteTriggerStore(db)
		logger.Info("using sqlite storage", "path", cfg.Storage.Path)

	default:
		defStore := workflow.NewDefinitionStore()
		provider = defStore
		registerFunc = func(_ context.Context, def *workflow.WorkflowDefinition) error {
			return defStore.Register(def)
		}
		scheduleRepo = schedule.NewInMemoryScheduleRepository()
		triggerRepo = trigger.NewInMemoryTriggerRepository()
		logger.Info("using in-memory storage")
	}

	if definitionsDir != "" {
		count, err := registerDefinitions(ctx, definitionsDir, registerFunc)
		if err != nil {
			return err
		}
		logger.Info("registered workflow definitions", "dir", definitionsDir, "count", count)
	}

	engine := workflow.NewEngine(
		workflow.WithPollInterval(cfg.Engine.PollIntervalD),
	)

	scheduler := schedule.NewScheduler(scheduleRepo,
		schedule.WithPollInterval(cfg.Scheduler.PollIntervalD),
		schedule.WithBufferSize(cfg.Scheduler.BufferSize),
	)
	processor := schedule.NewExecutionProcessor(scheduler.Executions(), engine, provider)

	manager := trigger.NewManager(triggerRepo, engine, provider)
	bus := trigger.NewEventBus(manager,
		trigger.WithBufferSize(cfg.Trigger.BufferSize),
		trigger.WithWorkerCount(cfg.Trigger.WorkerCount),
	)

	scheduler.Start(ctx)
	go processor.Run(ctx)

	logger.Info("cascade started",
		"engine_poll", cfg.Engine.PollInterval,
		"scheduler_poll", cfg.Scheduler.PollInterval,
	)

	<-ctx.Done()

	logger.Info("shutting down")
	scheduler.Stop()
	if err := bus.Close(); err != nil {
		logger.Warn("close event bus", "error", err)
	}
	return nil
}

func registerDefinitions(ctx context.Context, dir string, register func(context.Context, *workflow.WorkflowDefinition) error) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read definitions directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		def, err := workflow.ParseFile(path)
		if err != nil {
			return count, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := register(ctx, def); err != nil {
			return count, fmt.Errorf("register %s: %w", def.Name, err)
		}
		count++
	}
	return count, nil
}
