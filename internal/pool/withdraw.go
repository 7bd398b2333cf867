package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/ammerr"
	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// WithdrawParams are the inputs of Withdraw. Both minimums must be positive.
type WithdrawParams struct {
	Seed     uint64
	LPAmount uint64
	MinX     uint64
	MinY     uint64
}

// Withdraw burns LPAmount shares from caller and pays out the proportional
// reserves, rounded down.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, p WithdrawParams) (quote model.LiquidityQuote, err error) {
	defer func() { e.observe(model.OpWithdraw, p.Seed, err) }()

	snap, err := e.load(ctx, p.Seed)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if snap.cfg.Locked {
		return model.LiquidityQuote{}, ammerr.ErrPoolLocked.Wrapf("pool %d", p.Seed)
	}
	if p.LPAmount == 0 {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("lp amount must be positive")
	}
	if p.MinX == 0 || p.MinY == 0 {
		return model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("min x and min y must be positive")
	}

	r := snap.reserves
	quote, err = curve.WithdrawAmountsFromL(r.X, r.Y, r.LPSupply, p.LPAmount, snap.cfg.Precision)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if quote.X < p.MinX || quote.Y < p.MinY {
		return model.LiquidityQuote{}, ammerr.ErrSlippageExceeded.Wrapf("withdraw pays x=%d y=%d, min x=%d y=%d", quote.X, quote.Y, p.MinX, p.MinY)
	}

	cfg := snap.cfg
	cs := snap.changeset(
		ledger.Transfer(cfg.MintX, cfg.Address, caller, quote.X),
		ledger.Transfer(cfg.MintY, cfg.Address, caller, quote.Y),
		ledger.Burn(cfg.LPMint, caller, quote.LP),
	)
	if err := e.commit(ctx, model.OpWithdraw, cs); err != nil {
		return model.LiquidityQuote{}, err
	}

	receipt := newReceipt(model.OpWithdraw, cfg, caller)
	receipt.AmountOutX = quote.X
	receipt.AmountOutY = quote.Y
	receipt.LPBurned = quote.LP
	e.record(receipt, r.LPSupply-quote.LP)

	return quote, nil
}
