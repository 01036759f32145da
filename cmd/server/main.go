package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusdrive/internal/api"
	"campusdrive/internal/app/executor"
	"campusdrive/internal/app/service"
	"campusdrive/internal/app/worker"
	"campusdrive/internal/common/security"
	"campusdrive/internal/domain/repository"
	"campusdrive/internal/platform/config"
	"campusdrive/internal/platform/database"
	platformredis "campusdrive/internal/platform/redis"

	"github.com/lmittmann/tint"
)

func main() {
	// 1. Load Configuration
	config.Load()

	// 2. Logging
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	})))
	slog.Info("configuration loaded")

	// 3. Initialize JWT
	security.InitJWT()

	// 4. Initialize Database
	database.Connect()
	defer database.Close()
	slog.Info("database connected")

	// 5. Initialize Redis
	platformredis.Connect()
	defer platformredis.Close()
	slog.Info("redis connected")

	// 6. Initialize Repositories
	driveRepo := repository.NewPgDriveRepository(database.DB)
	regRepo := repository.NewPgRegistrationRepository(database.DB)
	attemptRepo := repository.NewPgAttemptRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	resultRepo := repository.NewPgResultRepository(database.DB)

	// 7. Execution backend client
	execClient := executor.New(executor.Config{
		BaseURL:             config.AppConfig.ExecutorBaseURL,
		AuthToken:           config.AppConfig.ExecutorAuthToken,
		RequestTimeout:      time.Duration(config.AppConfig.ExecutorTimeoutSeconds) * time.Second,
		CPUTimeLimitSeconds: config.AppConfig.ExecutionCPUTimeLimitSeconds,
		MemoryLimitKB:       config.AppConfig.ExecutionMemoryLimitKB,
	})

	// 8. Initialize Services
	locker := platformredis.NewLocker(platformredis.RDB, config.AppConfig.RankLockKeyPrefix,
		time.Duration(config.AppConfig.RankLockTTLSeconds)*time.Second)
	resultService := service.NewResultService(resultRepo, problemRepo, submissionRepo, attemptRepo, locker)
	attemptService := service.NewAttemptService(attemptRepo, regRepo, driveRepo, problemRepo, submissionRepo, resultRepo, resultService)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, attemptService, execClient)
	driveService := service.NewDriveService(driveRepo, regRepo, attemptRepo)

	// 9. Expiry sweep worker
	expiryWorker := worker.NewExpiryWorker(attemptService, config.AppConfig.ExpirySweepSchedule)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := expiryWorker.Start(workerCtx); err != nil {
		log.Fatalf("Could not start expiry worker: %v", err)
	}

	// 10. Initialize Router & HTTP Server
	router := api.NewRouter(driveService, attemptService, submissionService, resultService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second, // must outlive the execution path
		IdleTimeout:  120 * time.Second,
	}

	// 11. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()

	<-stop // Wait for interrupt signal

	slog.Info("shutting down server")
	workerCancel()
	expiryWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	slog.Info("server and worker stopped gracefully")
}
