// Package safety gates stake execution on pool liquidity health.
package safety

import (
	"fmt"

	"dca-stake-agent/internal/domain"
)

// CheckLiquidity validates that a pool holds enough TAO to absorb the
// intended stake: liquidity must be readable, positive, and at least
// stakeAmount × minRatio. Pure function; a failed check is a graceful
// skip at the orchestrator level, never a failure.
func CheckLiquidity(subnet domain.SubnetInfo, stakeAmount, minRatio float64) (ok bool, measured float64, reason string) {
	liquidity, err := subnet.LiquidityTAO()
	if err != nil {
		return false, 0, "liquidity unavailable"
	}

	if liquidity <= 0 {
		return false, liquidity, "pool has zero or negative liquidity"
	}

	required := stakeAmount * minRatio
	if liquidity < required {
		return false, liquidity, fmt.Sprintf("pool liquidity %.2f TAO below required %.2f TAO", liquidity, required)
	}

	return true, liquidity, "ok"
}
