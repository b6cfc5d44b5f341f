// Package subtensor provides a JSON-RPC client for subtensor chain nodes.
// Nodes expose their RPC surface over WebSocket; one WSClient corresponds
// to one live node connection.
package subtensor

import (
	"context"

	"dca-stake-agent/internal/domain"
)

// Client defines the node RPC surface used by the agent.
type Client interface {
	// BlockNumber retrieves the current chain head height. Used as the
	// connection liveness check.
	BlockNumber(ctx context.Context) (uint64, error)

	// AllSubnets retrieves dynamic info for every subnet pool.
	AllSubnets(ctx context.Context) ([]domain.SubnetInfo, error)

	// Balance retrieves the free balance of an account in TAO.
	Balance(ctx context.Context, address string) (float64, error)

	// SubmitExtrinsic submits a signed extrinsic and waits until the node
	// reports it included in a block. Returns false when the node reports
	// the extrinsic invalid or dropped. Does not wait for finalization.
	SubmitExtrinsic(ctx context.Context, ext string) (bool, error)

	// Close releases the underlying connection. Safe to call once.
	Close() error
}
