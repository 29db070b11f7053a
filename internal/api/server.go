package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"procodus.dev/telemetry-store/internal/store"
	"procodus.dev/telemetry-store/pkg/metrics"
)

// Server represents the record store server that manages the database,
// the HTTP API, and the optional queue consumer.
type Server struct {
	logger     *slog.Logger
	db         *gorm.DB
	store      *store.Store
	consumer   *Consumer
	httpServer *http.Server
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Storage configuration
	StorageDir string

	// Shared-secret credential expected on every request
	APIKey string

	// HTTP server configuration
	HTTPPort int

	// RabbitMQ configuration; leave URL empty to disable the consumer
	RabbitMQURL string
	QueueName   string

	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.ServerMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.StorageDir == "" {
		return nil, errors.New("storage directory cannot be empty")
	}

	if cfg.APIKey == "" {
		return nil, errors.New("api key cannot be empty")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.RabbitMQURL != "" && cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty when rabbitmq URL is set")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the record store server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting record store server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Initialize database
	db, err := store.NewDB(&store.DBConfig{
		Logger: s.logger,
		Dir:    s.config.StorageDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	st, err := store.NewStore(s.logger, db, s.config.Metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	s.store = st

	s.logger.Info("record store initialized")

	// Initialize consumer when a queue is configured
	if s.config.RabbitMQURL != "" {
		consumer, err := NewConsumer(&ConsumerConfig{
			Logger:      s.logger,
			Store:       s.store,
			RabbitMQURL: s.config.RabbitMQURL,
			QueueName:   s.config.QueueName,
			Metrics:     s.config.Metrics,
			MQMetrics:   s.config.MQMetrics,
		})
		if err != nil {
			_ = store.CloseDB(s.db, s.logger)
			return fmt.Errorf("failed to initialize consumer: %w", err)
		}
		s.consumer = consumer

		if err := s.consumer.Start(ctx); err != nil {
			_ = store.CloseDB(s.db, s.logger)
			return fmt.Errorf("failed to start consumer: %w", err)
		}
	}

	// Initialize HTTP API
	apiHandlers, err := NewAPI(s.logger, s.store, s.config.APIKey, s.config.Metrics)
	if err != nil {
		if s.consumer != nil {
			_ = s.consumer.Stop()
		}
		_ = store.CloseDB(s.db, s.logger)
		return fmt.Errorf("failed to initialize API: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           apiHandlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	// Start HTTP server in goroutine
	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("record store server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	// Shutdown
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down record store server")

	var shutdownErr error

	// Stop HTTP server
	if s.httpServer != nil {
		s.logger.Info("stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	// Stop consumer
	if s.consumer != nil {
		s.logger.Info("stopping consumer")
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; consumer shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("consumer shutdown error: %w", err)
			}
		}
	}

	// Close database
	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; database close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("database close error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("record store server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("record store server shutdown completed successfully")
	return nil
}
