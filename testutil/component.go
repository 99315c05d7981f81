package testutil

import (
	"context"

	"github.com/kbukum/workloadops/component"
)

// TestComponent is a component that can be returned to its initial state
// between test cases.
type TestComponent interface {
	component.Component

	// Reset discards all state accumulated since Start.
	Reset(ctx context.Context) error
}
