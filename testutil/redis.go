package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/redis"
)

// RedisServer runs an in-process Redis server and a client connected to it.
// The client does not retry, so a stopped server fails calls at once.
type RedisServer struct {
	mini   *miniredis.Miniredis
	client *redis.Client
}

var _ TestComponent = (*RedisServer)(nil)

// NewRedisServer returns a server that is not yet running.
func NewRedisServer() *RedisServer { return &RedisServer{} }

// Redis starts a server for the duration of the test.
func Redis(t testing.TB) *RedisServer {
	t.Helper()
	s := NewRedisServer()
	Setup(t, s)
	return s
}

// Name implements component.Component.
func (s *RedisServer) Name() string { return "miniredis" }

// Start implements component.Component.
func (s *RedisServer) Start(context.Context) error {
	mini, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("miniredis: %w", err)
	}
	client, err := redis.New(redis.Config{
		Enabled:     true,
		Addr:        mini.Addr(),
		MaxRetries:  -1,
		DialTimeout: "200ms",
	}, nil)
	if err != nil {
		mini.Close()
		return err
	}
	s.mini, s.client = mini, client
	return nil
}

// Stop implements component.Component.
func (s *RedisServer) Stop(context.Context) error {
	if s.mini == nil {
		return nil
	}
	err := s.client.Close()
	s.mini.Close()
	s.mini, s.client = nil, nil
	return err
}

// Health implements component.Component.
func (s *RedisServer) Health(ctx context.Context) component.Health {
	h := component.Health{Name: s.Name(), Status: component.StatusHealthy}
	if s.client == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	} else if err := s.client.Ping(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, err.Error()
	}
	return h
}

// Reset flushes every key.
func (s *RedisServer) Reset(context.Context) error {
	if s.mini == nil {
		return errors.New("miniredis: not started")
	}
	s.mini.FlushAll()
	return nil
}

// Client returns the connected client, or nil before Start.
func (s *RedisServer) Client() *redis.Client { return s.client }

// Mini exposes the server for fast-forwarding TTLs, inspecting keys and
// injecting failures with SetError.
func (s *RedisServer) Mini() *miniredis.Miniredis { return s.mini }
