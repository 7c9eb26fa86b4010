package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-digest/internal/digest/config"
	delivery "golang-stock-digest/internal/digest/delivery/http"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/internal/digest/service"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/mailer"
	"golang-stock-digest/pkg/postgres"
	"golang-stock-digest/pkg/redis"
	"golang-stock-digest/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the digest service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Digest Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	companyRepo := repository.NewCompanyRepository(db.DB)
	digestRepo := repository.NewDailyDigestRepository(db.DB)

	// Initialize the AI provider
	var agentRepo repository.AgentRepository
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
		}
		agentRepo, err = repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
		}
	default:
		agentRepo = repository.NewAgentAIRepository(cfg, appLogger)
	}

	// Initialize services
	var fallback service.FallbackSource
	if cfg.Digest.RSSFallbackEnabled {
		fallback = service.NewGoogleNewsRSS(appLogger)
	}
	collector := service.NewNewsCollector(cfg, appLogger, agentRepo, fallback)
	summarizer := service.NewSummarizer(appLogger, agentRepo)
	classifier := service.NewIndustryClassifier(appLogger, agentRepo)

	var enricher service.ContentEnricher
	if cfg.Digest.EnrichContent {
		enricher = service.NewContentEnricher(appLogger)
	}

	digestMailer := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, appLogger)

	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	digestSvc := service.NewDigestService(cfg, appLogger,
		userRepo, companyRepo, digestRepo,
		collector, summarizer, classifier, enricher,
		digestMailer, notifier, redisClient)

	// Start the daily scheduler
	if cfg.Scheduler.Enabled {
		schedulerSvc, err := service.NewSchedulerService(cfg, appLogger, digestSvc)
		if err != nil {
			appLogger.Fatal("Failed to initialize scheduler", logger.ErrorField(err))
		}
		if err := schedulerSvc.Start(); err != nil {
			appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
		}
		defer schedulerSvc.Stop()
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	digestHandler := delivery.NewDigestHandler(digestSvc, appLogger)
	apiV1 := e.Group("/api/v1")
	digestsGroup := apiV1.Group("/digests")
	digestHandler.RegisterRoutes(digestsGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "digest-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-digest.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing digest-service CLI: %s\n", err)
		os.Exit(1)
	}
}
