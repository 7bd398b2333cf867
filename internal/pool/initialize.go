package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/ammerr"
	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// InitializeParams are the inputs of Initialize.
type InitializeParams struct {
	Seed      uint64
	MintX     common.Address
	MintY     common.Address
	AmountX   uint64
	AmountY   uint64
	FeeBps    uint16
	Authority model.Authority
}

// Initialize creates a pool, seeds its vaults from caller and mints the
// opening liquidity isqrt(x*y) to caller.
func (e *Engine) Initialize(ctx context.Context, caller common.Address, p InitializeParams) (cfg model.PoolConfig, quote model.LiquidityQuote, err error) {
	defer func() { e.observe(model.OpInitialize, p.Seed, err) }()

	if p.FeeBps > model.MaxFeeBps {
		return model.PoolConfig{}, model.LiquidityQuote{}, ammerr.ErrInvalidFee.Wrapf("fee_bps %d exceeds %d", p.FeeBps, model.MaxFeeBps)
	}
	if p.AmountX == 0 || p.AmountY == 0 {
		return model.PoolConfig{}, model.LiquidityQuote{}, ammerr.ErrInvalidAmount.Wrap("initial amounts must be positive")
	}
	if p.MintX == p.MintY {
		return model.PoolConfig{}, model.LiquidityQuote{}, ammerr.ErrInvalidToken.Wrap("mint x and mint y must differ")
	}

	decimalsX, err := e.mintDecimals(ctx, p.MintX)
	if err != nil {
		return model.PoolConfig{}, model.LiquidityQuote{}, err
	}
	decimalsY, err := e.mintDecimals(ctx, p.MintY)
	if err != nil {
		return model.PoolConfig{}, model.LiquidityQuote{}, err
	}

	if _, exists, err := e.ledger.PoolConfig(ctx, p.Seed); err != nil {
		return model.PoolConfig{}, model.LiquidityQuote{}, fmt.Errorf("load pool %d: %w", p.Seed, err)
	} else if exists {
		return model.PoolConfig{}, model.LiquidityQuote{}, ammerr.ErrBumpError.Wrapf("pool already initialized at seed %d", p.Seed)
	}

	quote, err = curve.InitialDeposit(p.AmountX, p.AmountY)
	if err != nil {
		return model.PoolConfig{}, model.LiquidityQuote{}, err
	}

	address := PoolAddress(p.Seed)
	cfg = model.PoolConfig{
		Seed:      p.Seed,
		Authority: p.Authority,
		MintX:     p.MintX,
		MintY:     p.MintY,
		FeeBps:    p.FeeBps,
		DecimalsX: decimalsX,
		DecimalsY: decimalsY,
		Precision: e.precision,
		Address:   address,
		LPMint:    LPMintAddress(address),
	}

	cs := ledger.Changeset{
		Effects: []ledger.Effect{
			ledger.CreateMint(cfg.LPMint, cfg.Precision),
			ledger.Transfer(cfg.MintX, caller, cfg.Address, quote.X),
			ledger.Transfer(cfg.MintY, caller, cfg.Address, quote.Y),
			ledger.MintTo(cfg.LPMint, caller, quote.LP),
		},
		Config:       &cfg,
		CreateConfig: true,
	}
	if err := e.commit(ctx, model.OpInitialize, cs); err != nil {
		return model.PoolConfig{}, model.LiquidityQuote{}, err
	}

	receipt := newReceipt(model.OpInitialize, cfg, caller)
	receipt.AmountInX = quote.X
	receipt.AmountInY = quote.Y
	receipt.LPMinted = quote.LP
	receipt.Authority = cfg.Authority.String()
	e.record(receipt, quote.LP)

	return cfg, quote, nil
}

func (e *Engine) mintDecimals(ctx context.Context, mint common.Address) (uint8, error) {
	decimals, err := e.ledger.Decimals(ctx, mint)
	if errors.Is(err, ledger.ErrUnknownMint) {
		return 0, fmt.Errorf("%w: %w", ammerr.ErrInvalidToken, err)
	}
	if err != nil {
		return 0, fmt.Errorf("read decimals of %s: %w", mint.Hex(), err)
	}
	return decimals, nil
}
