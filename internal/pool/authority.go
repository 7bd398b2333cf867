package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/ammerr"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// Lock stops deposits, withdrawals and swaps until Unlock.
func (e *Engine) Lock(ctx context.Context, caller common.Address, seed uint64) error {
	return e.setLocked(ctx, caller, seed, true)
}

// Unlock reopens a locked pool.
func (e *Engine) Unlock(ctx context.Context, caller common.Address, seed uint64) error {
	return e.setLocked(ctx, caller, seed, false)
}

func (e *Engine) setLocked(ctx context.Context, caller common.Address, seed uint64, locked bool) (err error) {
	op := model.OpUnlock
	if locked {
		op = model.OpLock
	}
	defer func() { e.observe(op, seed, err) }()

	cfg, err := e.loadConfig(ctx, seed)
	if err != nil {
		return err
	}
	if err := authorize(cfg, caller); err != nil {
		return err
	}

	observed := cfg
	cfg.Locked = locked
	if err := e.commit(ctx, op, ledger.Changeset{Observed: &observed, Config: &cfg}); err != nil {
		return err
	}

	receipt := newReceipt(op, cfg, caller)
	receipt.Authority = cfg.Authority.String()
	e.record(receipt, e.currentSupply(ctx, cfg))
	return nil
}

// UpdateAuthority hands the pool capability to next. Passing
// model.NoAuthority() clears it for good.
func (e *Engine) UpdateAuthority(ctx context.Context, caller common.Address, seed uint64, next model.Authority) (err error) {
	defer func() { e.observe(model.OpUpdateAuthority, seed, err) }()

	cfg, err := e.loadConfig(ctx, seed)
	if err != nil {
		return err
	}
	if err := authorize(cfg, caller); err != nil {
		return err
	}

	observed := cfg
	cfg.Authority = next
	if err := e.commit(ctx, model.OpUpdateAuthority, ledger.Changeset{Observed: &observed, Config: &cfg}); err != nil {
		return err
	}

	receipt := newReceipt(model.OpUpdateAuthority, cfg, caller)
	receipt.Authority = next.String()
	e.record(receipt, e.currentSupply(ctx, cfg))
	return nil
}

func authorize(cfg model.PoolConfig, caller common.Address) error {
	if !cfg.Authority.IsSet() {
		return ammerr.ErrNoAuthoritySet.Wrapf("pool %d", cfg.Seed)
	}
	if !cfg.Authority.HeldBy(caller) {
		return ammerr.ErrInvalidAuthority.Wrapf("%s does not hold pool %d", caller.Hex(), cfg.Seed)
	}
	return nil
}

// currentSupply is best effort; it only feeds the supply gauge.
func (e *Engine) currentSupply(ctx context.Context, cfg model.PoolConfig) uint64 {
	supply, err := e.ledger.Supply(ctx, cfg.LPMint)
	if err != nil {
		e.logger.Debug("lp supply read failed")
		return 0
	}
	return supply
}
