// Package main provides the dcastake entry point: one stake decision
// cycle per invocation, meant to be driven by cron.
//
// Exit codes:
//
//	0 = success OR graceful skip (market conditions not met)
//	1 = error (config, network, wallet, transaction failure)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"dca-stake-agent/internal/config"
	"dca-stake-agent/internal/connector"
	"dca-stake-agent/internal/logging"
	"dca-stake-agent/internal/orchestrator"
	"dca-stake-agent/internal/staking"
	"dca-stake-agent/internal/subtensor"
	"dca-stake-agent/internal/wallet"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	dryRun := flag.Bool("dry-run", false, "Preview what would happen without staking")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to load config: %v\n", err)
		return 1
	}
	// CLI flag overrides the config file.
	if *dryRun {
		cfg.DryRun = true
	}

	if err := wallet.ValidateAddress(cfg.ValidatorHotkey); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: invalid validator_hotkey: %v\n", err)
		return 1
	}

	log, logCloser, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to set up logging: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	log = log.With("run_id", uuid.NewString())
	log.Info("starting stake run", "network", cfg.Network)
	if cfg.DryRun {
		log.Info("dry run mode: no actual staking")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(orchestrator.Options{
		Config: cfg,
		Connector: connector.New(connector.DialerFunc(
			func(ctx context.Context, network string) (subtensor.Client, error) {
				return subtensor.DialNetwork(ctx, network, nil)
			}), log),
		Unlocker: orchestrator.UnlockerFunc(func(name string) (wallet.Signer, error) {
			password, err := wallet.Password()
			if err != nil {
				return nil, err
			}
			return wallet.Unlock(name, password)
		}),
		Executor: staking.NewExecutor(),
		Log:      log,
	})

	outcome := orch.Run(ctx)

	code := outcome.ExitCode()
	if code == 0 {
		log.Info("run finished",
			"outcome", string(outcome.Class), "reason", outcome.Reason, "exit_code", code)
	} else {
		log.Error("run finished",
			"outcome", string(outcome.Class), "reason", outcome.Reason, "exit_code", code)
	}
	return code
}
