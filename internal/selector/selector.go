// Package selector resolves the target subnet: either an explicit netuid,
// or the best-scoring eligible subnet from a whitelist.
package selector

import (
	"errors"
	"fmt"
	"log/slog"

	"dca-stake-agent/internal/domain"
)

var (
	// ErrNotFound is returned in explicit-netuid mode when the target
	// subnet does not exist. This is fatal, not a skip.
	ErrNotFound = errors.New("subnet not found")

	// ErrNoEligible is returned in whitelist mode when no subnet survives
	// filtering. The caller treats this as a graceful skip.
	ErrNoEligible = errors.New("no eligible subnets in whitelist")
)

// ResolveByID finds a subnet by netuid with a linear scan.
func ResolveByID(subnets []domain.SubnetInfo, netuid int) (*domain.SubnetInfo, error) {
	for i := range subnets {
		if subnets[i].Netuid == netuid {
			s := subnets[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: netuid %d", ErrNotFound, netuid)
}

// Params bound whitelist selection.
type Params struct {
	Whitelist         []int
	StakeAmount       float64
	MinLiquidityRatio float64
}

// SelectBest picks the best-scoring eligible subnet from the whitelist.
//
// A subnet is eligible when it is whitelisted, has a positive parsable
// price, and has a readable pool liquidity of at least
// stakeAmount × minLiquidityRatio. Score is emission/price; an unreadable
// emission scores 0 but keeps the subnet eligible.
//
// The scan is a single-pass fold: the incumbent is replaced only on a
// strictly greater score, so ties keep the earliest-seen subnet and the
// result is deterministic for a fixed input sequence.
func SelectBest(subnets []domain.SubnetInfo, p Params, log *slog.Logger) (*domain.SubnetInfo, error) {
	whitelisted := make(map[int]bool, len(p.Whitelist))
	for _, id := range p.Whitelist {
		whitelisted[id] = true
	}

	required := p.StakeAmount * p.MinLiquidityRatio

	var best *domain.SubnetInfo
	var bestScore float64

	for i := range subnets {
		s := subnets[i]
		if !whitelisted[s.Netuid] {
			continue
		}

		price, err := s.PriceTAO()
		if err != nil {
			log.Debug("subnet rejected: invalid price", "netuid", s.Netuid)
			continue
		}
		if price <= 0 {
			log.Debug("subnet rejected: zero or negative price", "netuid", s.Netuid)
			continue
		}

		liquidity, err := s.LiquidityTAO()
		if err != nil {
			log.Debug("subnet rejected: liquidity unavailable", "netuid", s.Netuid)
			continue
		}
		if liquidity < required {
			log.Debug("subnet rejected: insufficient liquidity",
				"netuid", s.Netuid, "liquidity", liquidity, "required", required)
			continue
		}

		score := 0.0
		if emission, err := s.EmissionTAO(); err == nil {
			score = emission / price
		}

		if best == nil || score > bestScore {
			best = &s
			bestScore = score
		}
	}

	if best == nil {
		return nil, ErrNoEligible
	}
	return best, nil
}
