package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	database "github.com/beenthere/btdt-api/internal/db"
	"github.com/beenthere/btdt-api/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	client *mongo.Client
	db     *mongo.Database
	router http.Handler
}

// New creates a new Server instance with all dependencies
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	ctx := context.Background()
	if err := s.setupDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	return s, nil
}

// setupDatabase initializes the Mongo client and ensures indexes
func (s *Server) setupDatabase(ctx context.Context) error {
	s.logger.Info("Setting up database connection")

	client, db, err := database.Init(&s.cfg.Repositories.Mongo, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mongo client: %w", err)
	}

	if !database.WaitForDB(ctx, client, s.logger) {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("database did not answer pings")
	}
	s.logger.Info("Connected to MongoDB",
		zap.String("database", s.cfg.Repositories.Mongo.Database))

	if err := database.EnsureIndexes(ctx, db, s.logger); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	s.client = client
	s.db = db

	s.logger.Info("Database setup completed successfully")
	return nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// GetDB returns the database handle
func (s *Server) GetDB() *mongo.Database {
	return s.db
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.client != nil {
		if err := s.client.Disconnect(context.Background()); err != nil {
			s.logger.Warn("Error disconnecting from MongoDB", zap.Error(err))
		}
	}
}
