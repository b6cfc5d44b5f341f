// Package staking submits the stake extrinsic and interprets its result.
package staking

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"dca-stake-agent/internal/domain"
	"dca-stake-agent/internal/subtensor"
	"dca-stake-agent/internal/wallet"
)

// stakeCall is the add_stake call payload signed by the coldkey.
type stakeCall struct {
	Module    string `json:"module"`
	Call      string `json:"call"`
	Hotkey    string `json:"hotkey"`
	Netuid    int    `json:"netuid"`
	AmountRao uint64 `json:"amount_rao"`
}

// signedExtrinsic wraps a call payload with its signature and signer.
type signedExtrinsic struct {
	Signer    string          `json:"signer"`
	Call      json.RawMessage `json:"call"`
	Signature string          `json:"signature"` // hex
}

// Executor performs the stake action against a connected node.
type Executor struct{}

// NewExecutor creates a stake executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Stake submits exactly one add_stake extrinsic for the given subnet and
// waits for inclusion (not finalization). Returns whether the node
// reported the extrinsic included.
func (e *Executor) Stake(ctx context.Context, client subtensor.Client, signer wallet.Signer, validatorHotkey string, netuid int, amountTAO float64) (bool, error) {
	call, err := json.Marshal(stakeCall{
		Module:    "SubtensorModule",
		Call:      "add_stake",
		Hotkey:    validatorHotkey,
		Netuid:    netuid,
		AmountRao: uint64(amountTAO * domain.RaoPerTao),
	})
	if err != nil {
		return false, fmt.Errorf("encode stake call: %w", err)
	}

	sig, err := signer.Sign(call)
	if err != nil {
		return false, fmt.Errorf("sign stake call: %w", err)
	}

	ext, err := json.Marshal(signedExtrinsic{
		Signer:    signer.Address(),
		Call:      call,
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		return false, fmt.Errorf("encode extrinsic: %w", err)
	}

	return client.SubmitExtrinsic(ctx, "0x"+hex.EncodeToString(ext))
}
