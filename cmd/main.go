package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/config"
	"github.com/tgmstudios/mrm360-sub002/internal/database"
	"github.com/tgmstudios/mrm360-sub002/internal/handlers"
	"github.com/tgmstudios/mrm360-sub002/internal/integrations"
	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	"github.com/tgmstudios/mrm360-sub002/internal/queue"
	"github.com/tgmstudios/mrm360-sub002/internal/routes"
	authService "github.com/tgmstudios/mrm360-sub002/internal/service/auth"
	eventService "github.com/tgmstudios/mrm360-sub002/internal/service/events"
	"github.com/tgmstudios/mrm360-sub002/internal/service/provisioning"
	teamsync "github.com/tgmstudios/mrm360-sub002/internal/service/sync"
	taskService "github.com/tgmstudios/mrm360-sub002/internal/service/taskstatus"
	teamService "github.com/tgmstudios/mrm360-sub002/internal/service/team"
	profileService "github.com/tgmstudios/mrm360-sub002/internal/service/users"
	"github.com/tgmstudios/mrm360-sub002/internal/tasks"
)

func main() {
	log := logger.NewLogger("main")
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskManager := tasks.NewManager(tasks.NewSQLStore(db))
	jobStore := queue.NewSQLJobStore(db)
	queueService := queue.NewService(jobStore, taskManager, cfg.MaxJobAttempts)

	// Real adapter clients are wired per deployment; every integration
	// left unconfigured must also be absent from ENABLED_INTEGRATIONS.
	adapters := integrations.Unconfigured()

	orchestrator := provisioning.NewOrchestrator(adapters, provisioning.NewSQLTeamStore(db), cfg.AdapterTimeout)
	reconciler := teamsync.NewReconciler(adapters.Workshop, teamsync.NewSQLEventStore(db), cfg.DefaultMembersPerTeam, cfg.AdapterTimeout)

	worker := queue.NewWorker(jobStore, taskManager, orchestrator, reconciler, cfg.QueuePollInterval, cfg.RetryBackoffBase)
	go worker.Run(ctx, queue.QueueProvisioning, 1)
	go worker.Run(ctx, queue.QueueSync, cfg.SyncWorkers)

	router := routes.RegisterAllRoutes(&routes.Deps{
		JWTSecret: cfg.JWTSecret,
		Auth:      handlers.NewAuthHandler(authService.NewAuthService(db, cfg.JWTSecret)),
		Profiles:  profileService.NewProfileService(db),
		Teams:     teamService.NewTeamService(db, queueService, cfg.EnabledIntegrations),
		Events:    eventService.NewEventService(db, queueService),
		Tasks:     taskService.NewTaskService(taskManager),
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		}
	}()

	log.Info("Server is running", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server stopped unexpectedly", "error", err)
	}
}
