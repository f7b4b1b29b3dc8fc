// internal/api/service.go
package api

import (
	"context"
	"fmt"

	"github.com/cmatc13/txpilot/pkg/logging"
	"github.com/cmatc13/txpilot/pkg/service"
)

// APIService wraps the API server as a Service
type APIService struct {
	server *Server
	status service.Status
	logger *logging.Logger
	errCh  chan error
}

// NewAPIService creates a new API service
func NewAPIService(server *Server, logger *logging.Logger) *APIService {
	return &APIService{
		server: server,
		status: service.StatusStopped,
		logger: logger.Named("api-service"),
		errCh:  make(chan error, 1),
	}
}

// Name returns the service name
func (s *APIService) Name() string {
	return "api"
}

// Start initializes and starts the service
func (s *APIService) Start(ctx context.Context) error {
	s.status = service.StatusStarting
	s.logger.Info("Starting API service")

	go func() {
		if err := s.server.Start(); err != nil {
			s.logger.Error("API server exited", "error", err)
			s.errCh <- err
		}
	}()

	s.status = service.StatusRunning
	return nil
}

// Stop gracefully shuts down the service
func (s *APIService) Stop(ctx context.Context) error {
	s.status = service.StatusStopping

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}

	s.status = service.StatusStopped
	return nil
}

// Status returns the current service status
func (s *APIService) Status() service.Status {
	return s.status
}

// Health performs a health check
func (s *APIService) Health() error {
	if s.status != service.StatusRunning {
		return fmt.Errorf("service not running")
	}

	select {
	case err := <-s.errCh:
		return err
	default:
		return nil
	}
}

// Dependencies returns a list of services this service depends on
func (s *APIService) Dependencies() []string {
	return []string{}
}
