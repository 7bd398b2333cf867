package pool

import (
	"context"
	"math"

	"cpamm/internal/ammerr"
	"cpamm/internal/curve"
	"cpamm/internal/model"
)

// State reads a pool's config, reserves and spot price. The price is empty
// while either reserve is zero.
func (e *Engine) State(ctx context.Context, seed uint64) (model.PoolState, error) {
	snap, err := e.load(ctx, seed)
	if err != nil {
		return model.PoolState{}, err
	}
	state := model.PoolState{Config: snap.cfg, Reserves: snap.reserves}
	if snap.reserves.X > 0 && snap.reserves.Y > 0 {
		price, err := curve.SpotPrice(snap.reserves.X, snap.reserves.Y, snap.cfg.DecimalsX, snap.cfg.DecimalsY)
		if err != nil {
			return model.PoolState{}, err
		}
		state.SpotPrice = price.String()
	}
	return state, nil
}

// QuoteDeposit prices p the way Deposit would without committing it, ignoring
// the lock. A zero MaxX or MaxY leaves that side unbounded, except on a pool
// with no LP supply, where both are the re-seed payment and must be set.
func (e *Engine) QuoteDeposit(ctx context.Context, p DepositParams) (model.LiquidityQuote, error) {
	if p.LPAmount == 0 {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("lp amount must be positive")
	}
	snap, err := e.load(ctx, p.Seed)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if snap.reserves.LPSupply == 0 && (p.MaxX == 0 || p.MaxY == 0) {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrapf("pool %d has no LP supply; re-seeding needs max x and max y", p.Seed)
	}
	maxX, maxY := p.MaxX, p.MaxY
	if maxX == 0 {
		maxX = math.MaxUint64
	}
	if maxY == 0 {
		maxY = math.MaxUint64
	}
	return e.quoteDeposit(snap, p.LPAmount, maxX, maxY)
}

// QuoteWithdraw prices burning lp shares without committing it.
func (e *Engine) QuoteWithdraw(ctx context.Context, seed, lp uint64) (model.LiquidityQuote, error) {
	if lp == 0 {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("lp amount must be positive")
	}
	snap, err := e.load(ctx, seed)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	r := snap.reserves
	return curve.WithdrawAmountsFromL(r.X, r.Y, r.LPSupply, lp, snap.cfg.Precision)
}

// QuoteSwap prices selling amountIn in direction dir without committing it.
func (e *Engine) QuoteSwap(ctx context.Context, seed uint64, dir model.Direction, amountIn uint64) (model.SwapQuote, error) {
	if amountIn == 0 {
		return model.SwapQuote{}, ammerr.ErrInvalidAmount.Wrap("amount in must be positive")
	}
	snap, err := e.load(ctx, seed)
	if err != nil {
		return model.SwapQuote{}, err
	}
	s, err := sideOf(snap, dir)
	if err != nil {
		return model.SwapQuote{}, err
	}
	return curve.SwapAmountOut(s.reserveIn, s.reserveOut, amountIn, snap.cfg.FeeBps)
}
