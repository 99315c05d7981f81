package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/kbukum/workloadops/logger"
)

// Setup starts c and stops it when the test ends.
func Setup(t testing.TB, c TestComponent) {
	t.Helper()
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	t.Cleanup(func() {
		if err := c.Stop(ctx); err != nil {
			t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// Reset resets c, failing the test on error.
func Reset(t testing.TB, c TestComponent) {
	t.Helper()
	if err := c.Reset(context.Background()); err != nil {
		t.Fatalf("failed to reset component %s: %v", c.Name(), err)
	}
}

// Logs returns a debug-level JSON logger and the buffer it writes to.
func Logs(service string) (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, service, &buf), &buf
}
