package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Lab Orders API server...",
		zap.String("env", cfg.GoEnv),
		zap.String("env_file", cfg.EnvFile),
	)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with an error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.ConnectDatabase(cfg.DatabaseURL, cfg.IsDevelopment()); err != nil {
		return err
	}
	db := config.GetDB()
	if err := config.Migrate(db); err != nil {
		return err
	}
	logger.Info("Database migration completed successfully")

	operators := services.NewOperatorService(db)
	if cfg.SeedOperatorUsername != "" {
		op, created, err := operators.EnsureOperator(ctx, services.OperatorFields{
			FirstName: cfg.SeedOperatorFirstName,
			LastName:  cfg.SeedOperatorLastName,
			Email:     cfg.SeedOperatorEmail,
			Username:  cfg.SeedOperatorUsername,
			Password:  cfg.SeedOperatorPassword,
		})
		if err != nil {
			return err
		}
		logger.Info("Seed operator ready", zap.Uint("operator_id", op.ID), zap.Bool("created", created))
	}

	files, err := services.NewFileStorage(ctx, cfg)
	if err != nil {
		return err
	}

	mailer := services.NewSMTPMailer(cfg)
	dispatcher := services.NewDispatcher(mailer, operators, logger)
	reporter := services.NewMailErrorReporter(mailer, cfg.MaintainerEmail, logger)
	defer reporter.Wait()

	// Delivery runs on its own context so the backlog can drain after a signal.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var notifier services.Notifier
	if cfg.RabbitMQURL != "" {
		queue, err := services.DialAMQPQueue(cfg.RabbitMQURL, cfg.NotificationQueue)
		if err != nil {
			return err
		}
		defer func() {
			cancelWork()
			queue.Close()
		}()

		go func() {
			if err := queue.Consume(workCtx, dispatcher, logger); err != nil {
				logger.Error("notification consumer stopped", zap.Error(err))
			}
		}()
		notifier = queue
		logger.Info("Notifications go through RabbitMQ", zap.String("queue", cfg.NotificationQueue))
	} else {
		queue := services.NewChannelQueue(dispatcher, 100, logger)
		queue.Start(workCtx, 2)
		defer queue.Close()
		notifier = queue
	}

	var revocations services.RevocationStore
	if cfg.RedisURL != "" {
		store, err := services.NewRedisRevocationStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer store.Close()
		revocations = store
	} else {
		revocations = services.NewMemoryRevocationStore()
	}

	router, err := setupRouter(dependencies{
		cfg:         cfg,
		db:          db,
		files:       files,
		notifier:    notifier,
		revocations: revocations,
		reporter:    reporter,
		logger:      logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server is running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	return nil
}
