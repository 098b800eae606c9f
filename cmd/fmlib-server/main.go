package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kelo-robotics/fmlib/internal/config"
	"github.com/kelo-robotics/fmlib/internal/environment"
	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/internal/request"
	requestrepo "github.com/kelo-robotics/fmlib/internal/request/repositoryimpl"
	"github.com/kelo-robotics/fmlib/internal/task"
	taskrepo "github.com/kelo-robotics/fmlib/internal/task/repositoryimpl"
	"github.com/kelo-robotics/fmlib/internal/timetable"
	timetablerepo "github.com/kelo-robotics/fmlib/internal/timetable/repositoryimpl"
	"github.com/kelo-robotics/fmlib/pkg/clog"
	"github.com/kelo-robotics/fmlib/pkg/panicerr"
	"github.com/kelo-robotics/fmlib/pkg/storage"

	server "github.com/kelo-robotics/fmlib/internal"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	var localStore *storage.LocalStorage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		localStore, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
		store = localStore
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	requestRepo := requestrepo.NewYAMLRepository(store)
	taskRepo := taskrepo.NewYAMLRepository(store)
	timetableRepo := timetablerepo.NewYAMLRepository(store)

	// Setup services and servers
	planner := &environment.StaticPlanner{Maps: env.Maps}
	taskService := task.NewService(taskRepo, requestRepo, timetableRepo, bus)

	requestServer := request.NewServer(requestRepo, planner, bus)
	taskServer := task.NewServer(taskService, requestRepo)
	timetableServer := timetable.NewServer(timetableRepo, bus)
	eventServer := eventbus.NewServer(bus)

	srv := server.NewServer(env, requestServer, taskServer, timetableServer, eventServer)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// The solver hand-off watcher only applies to local storage, where the
	// solver drops timetable files next to ours.
	if env.TimetableEnv.WatchEnabled && localStore != nil {
		dir := filepath.Join(localStore.BasePath(), timetablerepo.Prefix())
		watcher := timetable.NewWatcher(dir, timetableRepo, bus)
		go func() {
			if err := panicerr.SafeContext(watcher.Run)(ctx); err != nil && ctx.Err() == nil {
				slog.Error("timetable watcher error", "error", err)
			}
		}()
	}

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give active connections time to finish after stream contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
