// internal/publisher/service.go
package publisher

import (
	"context"
	"fmt"

	"github.com/cmatc13/txpilot/pkg/service"
)

// PublisherService wraps the KafkaPublisher as a Service
type PublisherService struct {
	publisher *KafkaPublisher
	status    service.Status
}

// NewPublisherService creates a new publisher service
func NewPublisherService(publisher *KafkaPublisher) *PublisherService {
	return &PublisherService{
		publisher: publisher,
		status:    service.StatusStopped,
	}
}

// Name returns the service name
func (s *PublisherService) Name() string {
	return "result-publisher"
}

// Start initializes and starts the service
func (s *PublisherService) Start(ctx context.Context) error {
	s.status = service.StatusRunning
	return nil
}

// Stop flushes and closes the producer
func (s *PublisherService) Stop(ctx context.Context) error {
	s.status = service.StatusStopping
	s.publisher.Close()
	s.status = service.StatusStopped
	return nil
}

// Status returns the current service status
func (s *PublisherService) Status() service.Status {
	return s.status
}

// Health performs a health check
func (s *PublisherService) Health() error {
	if s.status != service.StatusRunning {
		return fmt.Errorf("service not running")
	}
	return nil
}

// Dependencies returns a list of services this service depends on
func (s *PublisherService) Dependencies() []string {
	return []string{}
}
