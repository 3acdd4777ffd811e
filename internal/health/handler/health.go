// Package handler serves readiness through the standard gRPC health protocol and a plain checker
// shared with the HTTP API.
package handler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultCheckTimeout bounds each dependency ping.
const DefaultCheckTimeout = 3 * time.Second

// PingFunc reports whether one dependency is reachable.
type PingFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	ping PingFunc
}

// Checker runs a fixed set of dependency pings.
type Checker struct {
	mu      sync.Mutex
	checks  []namedCheck
	timeout time.Duration
}

// NewChecker returns an empty checker. timeout <= 0 selects DefaultCheckTimeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{timeout: timeout}
}

// Add registers a ping under name. Nil pings are ignored.
func (c *Checker) Add(name string, ping PingFunc) {
	if ping == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, namedCheck{name: name, ping: ping})
}

// Check runs every ping in order and returns the first failure, naming the dependency.
// A nil or empty checker is healthy.
func (c *Checker) Check(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.Unlock()
	for _, nc := range checks {
		pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := nc.ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", nc.name, err)
		}
	}
	return nil
}

// Server keeps the gRPC health status in line with a Checker.
type Server struct {
	health  *health.Server
	checker *Checker
}

// NewServer returns a Server reporting NOT_SERVING until the first Refresh.
func NewServer(checker *Checker) *Server {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{health: h, checker: checker}
}

// Register adds the health service to s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Refresh runs the checker once and publishes the result.
func (s *Server) Refresh(ctx context.Context) error {
	err := s.checker.Check(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	return err
}

// Run refreshes every interval until ctx is cancelled, then marks the service as shutting down.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("health: not serving: %v", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	healthy := true
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			err := s.Refresh(ctx)
			switch {
			case err != nil && healthy:
				log.Printf("health: not serving: %v", err)
			case err == nil && !healthy:
				log.Printf("health: serving again")
			}
			healthy = err == nil
		}
	}
}
