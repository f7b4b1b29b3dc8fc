package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmatc13/txpilot/pkg/logging"
)

type stubService struct {
	mu      sync.Mutex
	name    string
	deps    []string
	started bool
	stopped bool
	starts  *[]string
	stops   *[]string
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	if s.starts != nil {
		*s.starts = append(*s.starts, s.name)
	}
	return nil
}

func (s *stubService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.stops != nil {
		*s.stops = append(*s.stops, s.name)
	}
	return nil
}

func (s *stubService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started && !s.stopped {
		return StatusRunning
	}
	return StatusStopped
}

func (s *stubService) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return fmt.Errorf("not running")
	}
	return nil
}

func (s *stubService) Dependencies() []string { return s.deps }

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.ErrorLevel, Output: io.Discard, ServiceName: "test"})
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry(testLogger())

	require.NoError(t, registry.Register(&stubService{name: "a"}))
	assert.Error(t, registry.Register(&stubService{name: "a"}))
}

func TestStartAllRespectsDependencyOrder(t *testing.T) {
	var starts []string
	registry := NewRegistry(testLogger())

	require.NoError(t, registry.Register(&stubService{name: "api", deps: []string{"archive"}, starts: &starts}))
	require.NoError(t, registry.Register(&stubService{name: "archive", starts: &starts}))

	require.NoError(t, registry.StartAll(context.Background()))

	require.Equal(t, []string{"archive", "api"}, starts)
}

func TestStopAllReversesOrder(t *testing.T) {
	var starts, stops []string
	registry := NewRegistry(testLogger())

	require.NoError(t, registry.Register(&stubService{name: "api", deps: []string{"archive"}, starts: &starts, stops: &stops}))
	require.NoError(t, registry.Register(&stubService{name: "archive", starts: &starts, stops: &stops}))

	require.NoError(t, registry.StartAll(context.Background()))
	require.NoError(t, registry.StopAll(context.Background()))

	require.Equal(t, []string{"api", "archive"}, stops)
}

func TestStartAllDetectsCycles(t *testing.T) {
	registry := NewRegistry(testLogger())

	require.NoError(t, registry.Register(&stubService{name: "a", deps: []string{"b"}}))
	require.NoError(t, registry.Register(&stubService{name: "b", deps: []string{"a"}}))

	assert.Error(t, registry.StartAll(context.Background()))
}

func TestMissingDependenciesAreIgnored(t *testing.T) {
	registry := NewRegistry(testLogger())

	require.NoError(t, registry.Register(&stubService{name: "api", deps: []string{"external"}}))
	assert.NoError(t, registry.StartAll(context.Background()))
}
