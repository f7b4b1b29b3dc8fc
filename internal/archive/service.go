// internal/archive/service.go
package archive

import (
	"context"
	"fmt"

	"github.com/cmatc13/txpilot/pkg/service"
)

// ArchiveService wraps the RedisArchive as a Service
type ArchiveService struct {
	archive *RedisArchive
	status  service.Status
}

// NewArchiveService creates a new archive service
func NewArchiveService(archive *RedisArchive) *ArchiveService {
	return &ArchiveService{
		archive: archive,
		status:  service.StatusStopped,
	}
}

// Name returns the service name
func (s *ArchiveService) Name() string {
	return "run-archive"
}

// Start initializes and starts the service
func (s *ArchiveService) Start(ctx context.Context) error {
	s.status = service.StatusStarting

	if err := s.archive.Ping(ctx); err != nil {
		s.status = service.StatusError
		return fmt.Errorf("archive unavailable: %w", err)
	}

	s.status = service.StatusRunning
	return nil
}

// Stop gracefully shuts down the service
func (s *ArchiveService) Stop(ctx context.Context) error {
	s.status = service.StatusStopping

	if err := s.archive.Close(); err != nil {
		return err
	}

	s.status = service.StatusStopped
	return nil
}

// Status returns the current service status
func (s *ArchiveService) Status() service.Status {
	return s.status
}

// Health performs a health check
func (s *ArchiveService) Health() error {
	if s.status != service.StatusRunning {
		return fmt.Errorf("service not running")
	}
	return s.archive.Ping(context.Background())
}

// Dependencies returns a list of services this service depends on
func (s *ArchiveService) Dependencies() []string {
	return []string{}
}
