package subtensor

import (
	"context"
	"fmt"
)

// endpoints maps named networks to their node WebSocket endpoints.
var endpoints = map[string]string{
	"finney":    "wss://entrypoint-finney.opentensor.ai:443",
	"subvortex": "wss://subvortex.info:9944",
	"archive":   "wss://archive.chain.opentensor.ai:443",
	"test":      "wss://test.finney.opentensor.ai:443",
	"local":     "ws://127.0.0.1:9944",
}

// Endpoint resolves a named network to its WebSocket endpoint.
func Endpoint(network string) (string, error) {
	ep, ok := endpoints[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}
	return ep, nil
}

// DialNetwork resolves a named network and dials its endpoint.
func DialNetwork(ctx context.Context, network string, config *WSConfig) (Client, error) {
	ep, err := Endpoint(network)
	if err != nil {
		return nil, err
	}
	return Dial(ctx, ep, config)
}
