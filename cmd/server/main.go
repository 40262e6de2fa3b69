package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"news-analyzer/internal/analyzer"
	"news-analyzer/internal/config"
	"news-analyzer/internal/events"
	"news-analyzer/internal/handler"
	"news-analyzer/internal/logger"
	"news-analyzer/internal/ml_client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	client := ml_client.NewClient(cfg.MLService.URL, cfg.MLService.Timeout(), log)
	bus := events.NewBus(events.DefaultBuffer, log)

	renderer := analyzer.RendererFunc(func(state analyzer.ViewState) {
		log.Debug("View updated",
			zap.Bool("trigger_enabled", state.TriggerEnabled),
			zap.Bool("card_visible", state.CardVisible))
	})
	notifier := analyzer.NotifierFunc(func(message string) {
		log.Info("Alert shown", zap.String("message", message))
	})
	controller := analyzer.NewController(client, renderer, notifier, bus, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Informational only, never blocks startup
	go analyzer.HealthCheck(ctx, client, log)

	router := gin.New()
	router.Use(gin.Recovery())
	handler.NewHandler(controller, client, bus, log).RegisterRoutes(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting",
			zap.String("address", serverAddr),
			zap.String("ml_service", client.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
