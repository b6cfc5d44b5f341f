// Package connector establishes a live node connection with bounded retry
// per network and ordered fallback across networks.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dca-stake-agent/internal/subtensor"
)

// FallbackNetworks is the fixed fallback set, in declared order.
var FallbackNetworks = []string{"finney", "subvortex", "archive"}

// Retry bounds per network.
const (
	MaxTriesPerNetwork = 3
	InitialBackoff     = 2 * time.Second
	MaxBackoff         = 10 * time.Second
)

// Dialer produces a node client for a named network.
type Dialer interface {
	Dial(ctx context.Context, network string) (subtensor.Client, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, network string) (subtensor.Client, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, network string) (subtensor.Client, error) {
	return f(ctx, network)
}

// Connector connects to one of several candidate networks.
type Connector struct {
	dialer Dialer
	log    *slog.Logger

	// sleep is injectable for tests; nil means real context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Connector using the given dialer.
func New(dialer Dialer, log *slog.Logger) *Connector {
	return &Connector{
		dialer: dialer,
		log:    log,
		sleep:  sleepCtx,
	}
}

// NetworkOrder builds the connection attempt order: the preferred network
// first, then the fallback set in declared order minus any duplicate of
// the preferred network.
func NetworkOrder(preferred string) []string {
	order := []string{preferred}
	for _, n := range FallbackNetworks {
		if n != preferred {
			order = append(order, n)
		}
	}
	return order
}

// Connect tries each candidate network in order until one yields a live
// connection. A connection counts as live only after the liveness call
// (current block height) succeeds. Fails with the last underlying error
// once every network has exhausted its tries.
func (c *Connector) Connect(ctx context.Context, preferred string) (subtensor.Client, error) {
	order := NetworkOrder(preferred)

	var lastErr error
	for _, network := range order {
		client, err := c.connectOne(ctx, network)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.log.Warn("network unreachable", "network", network, "error", err)
			lastErr = err
			continue
		}
		c.log.Info("connected", "network", network)
		return client, nil
	}

	return nil, fmt.Errorf("failed to connect to any of %v: %w", order, lastErr)
}

// connectOne makes up to MaxTriesPerNetwork attempts against one network
// with exponential backoff between tries.
func (c *Connector) connectOne(ctx context.Context, network string) (subtensor.Client, error) {
	delay := InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= MaxTriesPerNetwork; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
			if delay > MaxBackoff {
				delay = MaxBackoff
			}
		}

		c.log.Info("connecting", "network", network, "attempt", attempt)

		client, err := c.dialer.Dial(ctx, network)
		if err != nil {
			lastErr = err
			continue
		}

		// Verify the connection actually serves requests.
		block, err := client.BlockNumber(ctx)
		if err != nil {
			client.Close()
			lastErr = fmt.Errorf("liveness check: %w", err)
			continue
		}

		c.log.Info("liveness check passed", "network", network, "block", block)
		return client, nil
	}

	return nil, fmt.Errorf("%s: %d tries exhausted: %w", network, MaxTriesPerNetwork, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
