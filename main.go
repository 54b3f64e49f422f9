package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"iatlab/internal/config"
	logger "iatlab/internal/logging"
	"iatlab/internal/router"
	"iatlab/internal/store"
)

func main() {
	// Configuration loading wants a logger, and the real logger wants the
	// configured rotation settings, so bootstrap with a plain one.
	boot := zap.Must(zap.NewProduction())
	if err := config.Init(".", boot); err != nil {
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	logCfg := config.Conf.Logging
	log, err := logger.Init(".", logger.Options{
		Directory:  logCfg.Directory,
		MaxSize:    logCfg.MaxSize,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAge,
		Compress:   logCfg.Compress,
	})
	if err != nil {
		boot.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()

	// Connect to the document database with a bounded startup timeout.
	startupCtx, cancel := context.WithTimeout(context.Background(), config.Conf.Database.ConnectTimeout)
	s, err := store.NewMongo(startupCtx, config.Conf.Database, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Setup router, passing the logger and store to it
	r := router.Setup(log, config.Conf, s)

	srv := &http.Server{
		Addr:    ":" + config.Conf.Server.Port,
		Handler: r,
	}

	go func() {
		log.Info("Server listening on http://localhost:" + config.Conf.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	// Block until a termination signal, then drain in-flight requests and
	// tear down the database connection, both time-bounded.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := s.Close(shutdownCtx); err != nil {
		log.Error("Database disconnect failed", zap.Error(err))
	}
}
