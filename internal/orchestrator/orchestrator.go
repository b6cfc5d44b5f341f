// Package orchestrator runs one stake decision cycle:
// connect → unlock → balance gate → resolve target → safety gate → execute.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dca-stake-agent/internal/config"
	"dca-stake-agent/internal/domain"
	"dca-stake-agent/internal/safety"
	"dca-stake-agent/internal/selector"
	"dca-stake-agent/internal/subtensor"
	"dca-stake-agent/internal/wallet"
)

// FeeBufferTAO is reserved on top of the stake amount for transaction fees.
const FeeBufferTAO = 0.01

// Connector produces a live node connection for the preferred network.
type Connector interface {
	Connect(ctx context.Context, preferred string) (subtensor.Client, error)
}

// Unlocker opens the named wallet's keystore.
type Unlocker interface {
	Unlock(name string) (wallet.Signer, error)
}

// UnlockerFunc adapts a function to the Unlocker interface.
type UnlockerFunc func(name string) (wallet.Signer, error)

// Unlock calls f.
func (f UnlockerFunc) Unlock(name string) (wallet.Signer, error) {
	return f(name)
}

// Executor performs the external stake action.
type Executor interface {
	Stake(ctx context.Context, client subtensor.Client, signer wallet.Signer, validatorHotkey string, netuid int, amountTAO float64) (bool, error)
}

// Orchestrator owns one run's control flow and its single external
// resource, the node connection.
type Orchestrator struct {
	cfg       *config.Config
	connector Connector
	unlocker  Unlocker
	executor  Executor
	log       *slog.Logger
}

// Options for creating an Orchestrator.
type Options struct {
	Config    *config.Config
	Connector Connector
	Unlocker  Unlocker
	Executor  Executor
	Log       *slog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:       opts.Config,
		connector: opts.Connector,
		unlocker:  opts.Unlocker,
		executor:  opts.Executor,
		log:       opts.Log,
	}
}

// Run executes one decision cycle and returns its terminal outcome.
// The connection is released exactly once on every exit path.
func (o *Orchestrator) Run(ctx context.Context) domain.Outcome {
	client, err := o.connector.Connect(ctx, o.cfg.Network)
	if err != nil {
		return domain.NewFailure(fmt.Sprintf("connection failed: %v", err))
	}
	defer func() {
		if err := client.Close(); err != nil {
			o.log.Warn("closing connection", "error", err)
		}
	}()

	return o.runConnected(ctx, client)
}

func (o *Orchestrator) runConnected(ctx context.Context, client subtensor.Client) domain.Outcome {
	signer, err := o.unlocker.Unlock(o.cfg.WalletName)
	if err != nil {
		return domain.NewFailure(fmt.Sprintf("wallet unlock failed: %v", err))
	}
	o.log.Info("wallet unlocked", "wallet", o.cfg.WalletName, "address", signer.Address())

	balance, err := client.Balance(ctx, signer.Address())
	if err != nil {
		return domain.NewFailure(fmt.Sprintf("failed to check balance: %v", err))
	}
	required := o.cfg.StakeAmount + FeeBufferTAO
	if balance < required {
		// Insufficient balance is a misconfiguration signal, not a
		// market condition, so it fails rather than skips.
		return domain.NewFailure(fmt.Sprintf(
			"insufficient balance: %.4f TAO (need %.4f)", balance, required))
	}
	o.log.Info("balance checked", "balance_tao", fmt.Sprintf("%.4f", balance))

	subnet, outcome := o.resolveTarget(ctx, client)
	if subnet == nil {
		return outcome
	}

	price, err := subnet.PriceTAO()
	if err != nil || price <= 0 {
		return domain.NewFailure(fmt.Sprintf("invalid price data for subnet %d", subnet.Netuid))
	}
	o.log.Info("subnet selected",
		"netuid", subnet.Netuid, "name", subnet.Name, "price_tao", fmt.Sprintf("%.6f", price))

	ok, measured, reason := safety.CheckLiquidity(*subnet, o.cfg.StakeAmount, o.cfg.MinLiquidityRatio)
	o.log.Info("liquidity check",
		"netuid", subnet.Netuid, "liquidity_tao", fmt.Sprintf("%.2f", measured), "result", reason)
	if !ok {
		return domain.NewSkip(fmt.Sprintf("skipping stake: %s", reason))
	}

	if o.cfg.DryRun {
		o.log.Info("dry run: would stake",
			"amount_tao", o.cfg.StakeAmount, "netuid", subnet.Netuid)
		return domain.NewSuccess(fmt.Sprintf(
			"dry run: would stake %v TAO to subnet %d", o.cfg.StakeAmount, subnet.Netuid))
	}

	o.log.Info("executing stake", "amount_tao", o.cfg.StakeAmount, "netuid", subnet.Netuid)
	included, err := o.executor.Stake(ctx, client, signer, o.cfg.ValidatorHotkey, subnet.Netuid, o.cfg.StakeAmount)
	if err != nil {
		return domain.NewFailure(fmt.Sprintf("stake failed: %v", err))
	}
	if !included {
		return domain.NewFailure("stake transaction returned failure")
	}
	return domain.NewSuccess(fmt.Sprintf(
		"staked %v TAO to subnet %d (%s)", o.cfg.StakeAmount, subnet.Netuid, subnet.Name))
}

// resolveTarget picks the subnet per config mode. A nil subnet means the
// returned outcome is terminal.
func (o *Orchestrator) resolveTarget(ctx context.Context, client subtensor.Client) (*domain.SubnetInfo, domain.Outcome) {
	subnets, err := client.AllSubnets(ctx)
	if err != nil {
		return nil, domain.NewFailure(fmt.Sprintf("failed to fetch subnets: %v", err))
	}

	if o.cfg.TargetNetuid != nil {
		o.log.Info("resolving explicit target", "netuid", *o.cfg.TargetNetuid)
		subnet, err := selector.ResolveByID(subnets, *o.cfg.TargetNetuid)
		if err != nil {
			return nil, domain.NewFailure(err.Error())
		}
		return subnet, domain.Outcome{}
	}

	if len(o.cfg.Whitelist) > 0 {
		o.log.Info("selecting best from whitelist", "whitelist", o.cfg.Whitelist)
		subnet, err := selector.SelectBest(subnets, selector.Params{
			Whitelist:         o.cfg.Whitelist,
			StakeAmount:       o.cfg.StakeAmount,
			MinLiquidityRatio: o.cfg.MinLiquidityRatio,
		}, o.log)
		if err != nil {
			if errors.Is(err, selector.ErrNoEligible) {
				return nil, domain.NewSkip(err.Error())
			}
			return nil, domain.NewFailure(err.Error())
		}
		return subnet, domain.Outcome{}
	}

	// Config validation rejects this earlier; kept as a terminal guard.
	return nil, domain.NewFailure("no target_netuid or whitelist configured")
}
