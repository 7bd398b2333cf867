package model

import (
	"fmt"
	"strings"
)

// Reserves is a point-in-time read of the pool balances held by the ledger.
type Reserves struct {
	X        uint64 `json:"reserve_x"`
	Y        uint64 `json:"reserve_y"`
	LPSupply uint64 `json:"lp_supply"`
}

// LiquidityQuote is the result of a deposit or withdraw computation.
type LiquidityQuote struct {
	X  uint64 `json:"x_amount"`
	Y  uint64 `json:"y_amount"`
	LP uint64 `json:"lp_amount"`
}

// SwapQuote is the result of a swap computation. Fee is the part of the
// input that stays in the pool without being priced.
type SwapQuote struct {
	AmountOut uint64 `json:"amount_out"`
	Fee       uint64 `json:"fee_amount"`
}

// Direction selects which side of the pool a swap sells into.
type Direction uint8

const (
	XToY Direction = iota + 1
	YToX
)

func (d Direction) String() string {
	switch d {
	case XToY:
		return "x_to_y"
	case YToX:
		return "y_to_x"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d names a supported direction.
func (d Direction) Valid() bool {
	return d == XToY || d == YToX
}

// ParseDirection accepts "x_to_y"/"xy"/"x" and "y_to_x"/"yx"/"y".
func ParseDirection(input string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "x_to_y", "x-to-y", "xy", "x":
		return XToY, nil
	case "y_to_x", "y-to-x", "yx", "y":
		return YToX, nil
	default:
		return 0, fmt.Errorf("unknown swap direction %q", input)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PoolState is the read model returned by pool queries.
type PoolState struct {
	Config    PoolConfig `json:"config"`
	Reserves  Reserves   `json:"reserves"`
	SpotPrice string     `json:"spot_price"`
}
