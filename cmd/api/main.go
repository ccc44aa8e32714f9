package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/app"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/config"
	httpserver "github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http/handlers"
)

func main() {
	logger := log.New(os.Stdout, "[report-back] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Printf("startup failed: %v", err)
		stop()
		os.Exit(1)
	}
	defer stack.Close()

	api := handlers.NewAPI(handlers.Dependencies{
		Reports: stack.Workflow,
		Chat:    stack.Chat,
		Index:   sectionIndex(stack),
		Store:   stack.Store,
		Logger:  logger,
	})

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:             api,
		Metrics:         stack.Metrics.Handler(),
		Logger:          logger,
		AuthToken:       cfg.AuthToken,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		CORSCredentials: cfg.CORSAllowCredentials,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		processor := stack.Processor()
		go func() {
			processor.Start(ctx)
			close(workerDone)
		}()
		logger.Printf("worker enabled concurrency=%d", cfg.WorkerConcurrency)
	} else {
		close(workerDone)
		logger.Printf("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Printf("worker did not stop before shutdown deadline")
	}
}

// sectionIndex avoids handing a typed nil to the handlers.
func sectionIndex(stack *app.App) handlers.SectionIndex {
	if stack.Index == nil {
		return nil
	}
	return stack.Index
}
