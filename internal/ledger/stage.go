package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/model"
)

// View is the read side a backend exposes to Stage, already scoped to the
// backend's transaction or lock.
type View interface {
	Balance(owner, asset common.Address) (uint64, error)
	Supply(asset common.Address) (uint64, error)
	MintExists(asset common.Address) (bool, error)
	Config(seed uint64) (model.PoolConfig, bool, error)
}

// BalanceKey addresses one owner's balance in one asset.
type BalanceKey struct {
	Owner common.Address
	Asset common.Address
}

// Staged holds the final values a changeset produces. Backends write exactly
// these entries.
type Staged struct {
	Balances map[BalanceKey]uint64
	Supplies map[common.Address]uint64
	NewMints map[common.Address]uint8
}

type stager struct {
	view   View
	staged *Staged
}

// Stage validates cs against view and computes the resulting balances and
// supplies. It never writes; an error means the changeset must be dropped.
func Stage(view View, cs Changeset) (*Staged, error) {
	s := &stager{
		view: view,
		staged: &Staged{
			Balances: make(map[BalanceKey]uint64),
			Supplies: make(map[common.Address]uint64),
			NewMints: make(map[common.Address]uint8),
		},
	}

	for _, pre := range cs.Preconditions {
		var (
			current uint64
			err     error
		)
		if pre.Supply {
			current, err = view.Supply(pre.Asset)
		} else {
			current, err = view.Balance(pre.Owner, pre.Asset)
		}
		if err != nil {
			return nil, err
		}
		if current != pre.Amount {
			return nil, fmt.Errorf("%w: %s observed %d, now %d", ErrStaleState, describe(pre), pre.Amount, current)
		}
	}

	if observed := cs.Observed; observed != nil {
		current, ok, err := view.Config(observed.Seed)
		if err != nil {
			return nil, err
		}
		if !ok || current != *observed {
			return nil, fmt.Errorf("%w: config of pool %d changed", ErrStaleState, observed.Seed)
		}
	}

	if cs.CreateConfig {
		if cs.Config == nil {
			return nil, fmt.Errorf("create config without config record")
		}
		_, exists, err := view.Config(cs.Config.Seed)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: seed %d", ErrConfigExists, cs.Config.Seed)
		}
	}

	for i, effect := range cs.Effects {
		if err := s.apply(effect); err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i, effect.Kind, err)
		}
	}
	return s.staged, nil
}

func (s *stager) apply(effect Effect) error {
	if effect.Kind == EffectCreateMint {
		exists, err := s.mintExists(effect.Asset)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrMintExists, effect.Asset.Hex())
		}
		s.staged.NewMints[effect.Asset] = effect.Decimals
		s.staged.Supplies[effect.Asset] = 0
		return nil
	}

	exists, err := s.mintExists(effect.Asset)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownMint, effect.Asset.Hex())
	}

	switch effect.Kind {
	case EffectTransfer:
		if err := s.debit(effect.From, effect.Asset, effect.Amount); err != nil {
			return err
		}
		return s.credit(effect.To, effect.Asset, effect.Amount)
	case EffectMint:
		supply, err := s.supply(effect.Asset)
		if err != nil {
			return err
		}
		if supply+effect.Amount < supply {
			return fmt.Errorf("%w: supply of %s", ErrBalanceOverflow, effect.Asset.Hex())
		}
		s.staged.Supplies[effect.Asset] = supply + effect.Amount
		return s.credit(effect.To, effect.Asset, effect.Amount)
	case EffectBurn:
		if err := s.debit(effect.From, effect.Asset, effect.Amount); err != nil {
			return err
		}
		supply, err := s.supply(effect.Asset)
		if err != nil {
			return err
		}
		if supply < effect.Amount {
			return fmt.Errorf("%w: burn %d exceeds supply %d", ErrInsufficientFunds, effect.Amount, supply)
		}
		s.staged.Supplies[effect.Asset] = supply - effect.Amount
		return nil
	default:
		return fmt.Errorf("unsupported effect kind %d", effect.Kind)
	}
}

func (s *stager) debit(owner, asset common.Address, amount uint64) error {
	balance, err := s.balance(owner, asset)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientFunds, owner.Hex(), balance, asset.Hex(), amount)
	}
	s.staged.Balances[BalanceKey{Owner: owner, Asset: asset}] = balance - amount
	return nil
}

func (s *stager) credit(owner, asset common.Address, amount uint64) error {
	balance, err := s.balance(owner, asset)
	if err != nil {
		return err
	}
	if balance+amount < balance {
		return fmt.Errorf("%w: %s in %s", ErrBalanceOverflow, owner.Hex(), asset.Hex())
	}
	s.staged.Balances[BalanceKey{Owner: owner, Asset: asset}] = balance + amount
	return nil
}

func (s *stager) balance(owner, asset common.Address) (uint64, error) {
	if v, ok := s.staged.Balances[BalanceKey{Owner: owner, Asset: asset}]; ok {
		return v, nil
	}
	return s.view.Balance(owner, asset)
}

func (s *stager) supply(asset common.Address) (uint64, error) {
	if v, ok := s.staged.Supplies[asset]; ok {
		return v, nil
	}
	return s.view.Supply(asset)
}

func (s *stager) mintExists(asset common.Address) (bool, error) {
	if _, ok := s.staged.NewMints[asset]; ok {
		return true, nil
	}
	return s.view.MintExists(asset)
}

func describe(pre Precondition) string {
	if pre.Supply {
		return "supply of " + pre.Asset.Hex()
	}
	return "balance of " + pre.Owner.Hex() + " in " + pre.Asset.Hex()
}
