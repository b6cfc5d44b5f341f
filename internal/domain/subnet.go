package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// RaoPerTao is the number of RAO in one TAO.
const RaoPerTao = 1_000_000_000

// ErrUnavailable is returned when a subnet reports no value for a field,
// or reports one that cannot be parsed as a decimal number.
var ErrUnavailable = errors.New("value unavailable")

// SubnetInfo describes one dynamic subnet pool as reported by the node.
// Numeric fields arrive as decimal strings and may be empty or malformed;
// use the accessor methods to obtain parsed values.
type SubnetInfo struct {
	Netuid        int    // subnet identity
	Name          string // display name
	Price         string // alpha price in TAO
	TaoIn         string // TAO reserve in the pool (liquidity)
	TaoInEmission string // TAO emission rate, used for scoring
}

// PriceTAO parses the subnet price. Returns ErrUnavailable when the node
// reported no price or a malformed one.
func (s SubnetInfo) PriceTAO() (float64, error) {
	return parseTao(s.Price)
}

// LiquidityTAO parses the pool's TAO reserve.
func (s SubnetInfo) LiquidityTAO() (float64, error) {
	return parseTao(s.TaoIn)
}

// EmissionTAO parses the pool's TAO emission rate.
func (s SubnetInfo) EmissionTAO() (float64, error) {
	return parseTao(s.TaoInEmission)
}

func parseTao(raw string) (float64, error) {
	if raw == "" {
		return 0, ErrUnavailable
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnavailable, raw)
	}
	return v, nil
}
