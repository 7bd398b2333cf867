package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/ammerr"
	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// SwapParams are the inputs of Swap.
type SwapParams struct {
	Seed         uint64
	Direction    model.Direction
	AmountIn     uint64
	MinAmountOut uint64
}

// side is one direction's view of the pool: which vault is paid into and
// which is paid out of.
type side struct {
	mintIn, mintOut       common.Address
	reserveIn, reserveOut uint64
	nameIn, nameOut       string
}

func sideOf(snap snapshot, dir model.Direction) (side, error) {
	switch dir {
	case model.XToY:
		return side{
			mintIn: snap.cfg.MintX, mintOut: snap.cfg.MintY,
			reserveIn: snap.reserves.X, reserveOut: snap.reserves.Y,
			nameIn: "x", nameOut: "y",
		}, nil
	case model.YToX:
		return side{
			mintIn: snap.cfg.MintY, mintOut: snap.cfg.MintX,
			reserveIn: snap.reserves.Y, reserveOut: snap.reserves.X,
			nameIn: "y", nameOut: "x",
		}, nil
	default:
		return side{}, ammerr.ErrInvalidToken.Wrapf("unknown swap direction %s", dir)
	}
}

// Swap sells AmountIn of one asset into the pool and pays the constant-product
// output of the other asset to caller. The fee part of the input stays in the
// vault.
func (e *Engine) Swap(ctx context.Context, caller common.Address, p SwapParams) (quote model.SwapQuote, err error) {
	defer func() { e.observe(model.OpSwap, p.Seed, err) }()

	snap, err := e.load(ctx, p.Seed)
	if err != nil {
		return model.SwapQuote{}, err
	}
	if snap.cfg.Locked {
		return model.SwapQuote{}, ammerr.ErrPoolLocked.Wrapf("pool %d", p.Seed)
	}
	if p.AmountIn == 0 || p.MinAmountOut == 0 {
		return model.SwapQuote{}, ammerr.ErrInvalidAmount.Wrap("amount in and min amount out must be positive")
	}
	s, err := sideOf(snap, p.Direction)
	if err != nil {
		return model.SwapQuote{}, err
	}

	quote, err = curve.SwapAmountOut(s.reserveIn, s.reserveOut, p.AmountIn, snap.cfg.FeeBps)
	if err != nil {
		return model.SwapQuote{}, err
	}
	if quote.AmountOut < p.MinAmountOut {
		return model.SwapQuote{}, ammerr.ErrSlippageExceeded.Wrapf("swap pays %d, min %d", quote.AmountOut, p.MinAmountOut)
	}

	cfg := snap.cfg
	cs := snap.changeset(
		ledger.Transfer(s.mintIn, caller, cfg.Address, p.AmountIn),
		ledger.Transfer(s.mintOut, cfg.Address, caller, quote.AmountOut),
	)
	if err := e.commit(ctx, model.OpSwap, cs); err != nil {
		return model.SwapQuote{}, err
	}

	receipt := newReceipt(model.OpSwap, cfg, caller)
	receipt.Direction = p.Direction.String()
	receipt.Fee = quote.Fee
	if p.Direction == model.XToY {
		receipt.AmountInX = p.AmountIn
		receipt.AmountOutY = quote.AmountOut
	} else {
		receipt.AmountInY = p.AmountIn
		receipt.AmountOutX = quote.AmountOut
	}
	e.metrics.observeFee(cfg.Seed, s.nameIn, quote.Fee)
	e.record(receipt, snap.reserves.LPSupply)

	return quote, nil
}
