package module

import (
	"context"

	"github.com/bft-labs/modrun/pkg/lifecycle"
)

// Container is the backend a managed module runs in. Lifecycle actions
// receive the container as their target and may type-assert it to a
// concrete backend type.
type Container interface {
	lifecycle.Target

	// Description returns the module's metadata. Description().Name must
	// equal Name().
	Description() Description

	// Release frees the backend. The runtime calls it at most once, when the
	// module enters a terminal state or the failed state.
	Release(ctx context.Context) error
}
