package pool

import (
	"context"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/ammerr"
	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// DepositParams are the inputs of Deposit. MaxX and MaxY bound what the caller
// is willing to pay for LPAmount new shares.
type DepositParams struct {
	Seed     uint64
	LPAmount uint64
	MaxX     uint64
	MaxY     uint64
}

// Deposit mints LPAmount shares to caller in exchange for a proportional
// amount of both reserves, rounded up.
//
// A pool with no LP supply is re-seeded instead: the caller pays MaxX and
// MaxY and receives isqrt of the product of the resulting vault balances, so
// tokens left in or sent to the drained vaults go to the new position. That
// share count must be at least LPAmount.
func (e *Engine) Deposit(ctx context.Context, caller common.Address, p DepositParams) (quote model.LiquidityQuote, err error) {
	defer func() { e.observe(model.OpDeposit, p.Seed, err) }()

	snap, err := e.load(ctx, p.Seed)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if snap.cfg.Locked {
		return model.LiquidityQuote{}, ammerr.ErrPoolLocked.Wrapf("pool %d", p.Seed)
	}
	if p.LPAmount == 0 || p.MaxX == 0 || p.MaxY == 0 {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("lp amount, max x and max y must be positive")
	}

	quote, err = e.quoteDeposit(snap, p.LPAmount, p.MaxX, p.MaxY)
	if err != nil {
		return model.LiquidityQuote{}, err
	}

	cfg := snap.cfg
	cs := snap.changeset(
		ledger.Transfer(cfg.MintX, caller, cfg.Address, quote.X),
		ledger.Transfer(cfg.MintY, caller, cfg.Address, quote.Y),
		ledger.MintTo(cfg.LPMint, caller, quote.LP),
	)
	if err := e.commit(ctx, model.OpDeposit, cs); err != nil {
		return model.LiquidityQuote{}, err
	}

	receipt := newReceipt(model.OpDeposit, cfg, caller)
	receipt.AmountInX = quote.X
	receipt.AmountInY = quote.Y
	receipt.LPMinted = quote.LP
	e.record(receipt, snap.reserves.LPSupply+quote.LP)

	return quote, nil
}

func (e *Engine) quoteDeposit(snap snapshot, lp, maxX, maxY uint64) (model.LiquidityQuote, error) {
	r := snap.reserves
	if r.LPSupply == 0 {
		if r.X > math.MaxUint64-maxX || r.Y > math.MaxUint64-maxY {
			return model.LiquidityQuote{}, ammerr.ErrOverflow.Wrapf("re-seed vaults x=%d+%d y=%d+%d", r.X, maxX, r.Y, maxY)
		}
		seeded, err := curve.InitialDeposit(r.X+maxX, r.Y+maxY)
		if err != nil {
			return model.LiquidityQuote{}, err
		}
		if seeded.LP < lp {
			return model.LiquidityQuote{}, ammerr.ErrLiquidityLessThanMinimum.Wrapf("re-seed mints %d, requested %d", seeded.LP, lp)
		}
		return model.LiquidityQuote{X: maxX, Y: maxY, LP: seeded.LP}, nil
	}

	quote, err := curve.DepositAmountsFromL(r.X, r.Y, r.LPSupply, lp, snap.cfg.Precision)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if quote.X > maxX || quote.Y > maxY {
		return model.LiquidityQuote{}, ammerr.ErrSlippageExceeded.Wrapf("deposit needs x=%d y=%d, max x=%d y=%d", quote.X, quote.Y, maxX, maxY)
	}
	return quote, nil
}
