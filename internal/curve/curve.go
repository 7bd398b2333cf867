// Package curve implements the constant-product pool arithmetic.
//
// Every function is pure. Inputs and outputs are uint64 base units; all
// multiply-then-divide steps run on 256-bit intermediates so the product never
// wraps before the division. Amounts paid into the pool round up, amounts paid
// out round down.
package curve

import (
	"github.com/holiman/uint256"

	"cpamm/internal/ammerr"
	"cpamm/internal/model"
)

// MaxPrecision is the largest supported decimal precision (10^18 fits uint64).
const MaxPrecision = 18

// ValidatePrecision rejects precisions outside 0..MaxPrecision.
func ValidatePrecision(precision uint8) error {
	if precision > MaxPrecision {
		return ammerr.ErrInvalidPrecision.Wrapf("precision %d exceeds %d", precision, MaxPrecision)
	}
	return nil
}

// InitialDeposit quotes the first deposit into an empty pool. The caller
// chooses x and y, which fixes the opening price; the LP amount is the
// geometric mean isqrt(x*y).
func InitialDeposit(x, y uint64) (model.LiquidityQuote, error) {
	if x == 0 || y == 0 {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("initial amounts must be positive")
	}
	k := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	lp := new(uint256.Int).Sqrt(k)
	if !lp.IsUint64() {
		return model.LiquidityQuote{}, ammerr.ErrOverflow.Wrap("initial liquidity exceeds uint64")
	}
	if lp.IsZero() {
		return model.LiquidityQuote{}, ammerr.ErrLiquidityLessThanMinimum.Wrap("initial liquidity is zero")
	}
	return model.LiquidityQuote{X: x, Y: y, LP: lp.Uint64()}, nil
}

// DepositAmountsFromL quotes the x and y a depositor must pay to mint lp new
// shares against the current reserves. Both amounts round up.
func DepositAmountsFromL(reserveX, reserveY, supply, lp uint64, precision uint8) (model.LiquidityQuote, error) {
	if err := ValidatePrecision(precision); err != nil {
		return model.LiquidityQuote{}, err
	}
	if supply == 0 {
		return model.LiquidityQuote{}, ammerr.ErrZeroBalance.Wrap("lp supply is zero")
	}
	if reserveX == 0 || reserveY == 0 {
		return model.LiquidityQuote{}, ammerr.ErrZeroBalance.Wrap("pool reserves are zero")
	}
	if _, overflow := addUint64(supply, lp); overflow {
		return model.LiquidityQuote{}, ammerr.ErrOverflow.Wrap("lp supply after deposit exceeds uint64")
	}
	x, err := mulDivCeil(lp, reserveX, supply)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	y, err := mulDivCeil(lp, reserveY, supply)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if _, overflow := addUint64(reserveX, x); overflow {
		return model.LiquidityQuote{}, ammerr.ErrOverflow.Wrap("reserve x after deposit exceeds uint64")
	}
	if _, overflow := addUint64(reserveY, y); overflow {
		return model.LiquidityQuote{}, ammerr.ErrOverflow.Wrap("reserve y after deposit exceeds uint64")
	}
	return model.LiquidityQuote{X: x, Y: y, LP: lp}, nil
}

// WithdrawAmountsFromL quotes the x and y paid out for burning lp shares.
// Both amounts round down.
func WithdrawAmountsFromL(reserveX, reserveY, supply, lp uint64, precision uint8) (model.LiquidityQuote, error) {
	if err := ValidatePrecision(precision); err != nil {
		return model.LiquidityQuote{}, err
	}
	if supply == 0 {
		return model.LiquidityQuote{}, ammerr.ErrZeroBalance.Wrap("lp supply is zero")
	}
	if lp > supply {
		return model.LiquidityQuote{}, ammerr.ErrInsufficientBalance.Wrapf("burn %d exceeds lp supply %d", lp, supply)
	}
	x, err := mulDivFloor(lp, reserveX, supply)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	y, err := mulDivFloor(lp, reserveY, supply)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if _, underflow := subUint64(reserveX, x); underflow {
		return model.LiquidityQuote{}, ammerr.ErrUnderflow.Wrap("withdraw x exceeds reserve")
	}
	if _, underflow := subUint64(reserveY, y); underflow {
		return model.LiquidityQuote{}, ammerr.ErrUnderflow.Wrap("withdraw y exceeds reserve")
	}
	return model.LiquidityQuote{X: x, Y: y, LP: lp}, nil
}

// SwapAmountOut quotes a constant-product swap. The fee is taken from the
// input before pricing and stays in the pool.
func SwapAmountOut(reserveIn, reserveOut, amountIn uint64, feeBps uint16) (model.SwapQuote, error) {
	if feeBps > model.MaxFeeBps {
		return model.SwapQuote{}, ammerr.ErrInvalidFee.Wrapf("fee_bps %d", feeBps)
	}
	if reserveIn == 0 || reserveOut == 0 {
		return model.SwapQuote{}, ammerr.ErrInsufficientBalance.Wrap("pool reserves must be positive")
	}
	if _, overflow := addUint64(reserveIn, amountIn); overflow {
		return model.SwapQuote{}, ammerr.ErrOverflow.Wrap("reserve in after swap exceeds uint64")
	}

	fee, err := mulDivFloor(amountIn, uint64(feeBps), model.MaxFeeBps)
	if err != nil {
		return model.SwapQuote{}, err
	}
	netIn, underflow := subUint64(amountIn, fee)
	if underflow {
		return model.SwapQuote{}, ammerr.ErrUnderflow.Wrap("fee exceeds input")
	}

	// reserveIn+netIn cannot overflow: it is bounded by reserveIn+amountIn.
	out, err := mulDivFloor(reserveOut, netIn, reserveIn+netIn)
	if err != nil {
		return model.SwapQuote{}, err
	}
	if out >= reserveOut {
		return model.SwapQuote{}, ammerr.ErrInsufficientBalance.Wrapf("output %d drains reserve %d", out, reserveOut)
	}
	return model.SwapQuote{AmountOut: out, Fee: fee}, nil
}

// ConstantProduct returns k = x*y.
func ConstantProduct(reserveX, reserveY uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(reserveX), uint256.NewInt(reserveY))
}

func mulDivFloor(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ammerr.ErrCurveError.Wrap("division by zero")
	}
	q, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if overflow || !q.IsUint64() {
		return 0, ammerr.ErrOverflow.Wrapf("%d * %d / %d exceeds uint64", a, b, d)
	}
	return q.Uint64(), nil
}

func mulDivCeil(a, b, d uint64) (uint64, error) {
	q, err := mulDivFloor(a, b, d)
	if err != nil {
		return 0, err
	}
	rem := new(uint256.Int).MulMod(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if rem.IsZero() {
		return q, nil
	}
	ceil, overflow := addUint64(q, 1)
	if overflow {
		return 0, ammerr.ErrOverflow.Wrapf("%d * %d / %d rounded up exceeds uint64", a, b, d)
	}
	return ceil, nil
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

func subUint64(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, true
	}
	return a - b, false
}
