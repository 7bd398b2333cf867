// Package ledger defines the token ledger the pool engine runs against: balance
// and supply reads plus an all-or-nothing commit of transfers, mints and burns.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownMint       = errors.New("unknown mint")
	ErrMintExists        = errors.New("mint already exists")
	ErrConfigExists      = errors.New("pool config already exists")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrStaleState        = errors.New("stale state")
)

// Ledger is the external collaborator holding balances, mints and pool configs.
type Ledger interface {
	Balance(ctx context.Context, owner, asset common.Address) (uint64, error)
	Supply(ctx context.Context, asset common.Address) (uint64, error)
	// Decimals returns ErrUnknownMint for assets that were never created.
	Decimals(ctx context.Context, asset common.Address) (uint8, error)
	PoolConfig(ctx context.Context, seed uint64) (model.PoolConfig, bool, error)
	// Commit applies every precondition check, effect and config write of cs,
	// or none of them.
	Commit(ctx context.Context, cs Changeset) error
}

// EffectKind enumerates ledger mutations.
type EffectKind uint8

const (
	EffectCreateMint EffectKind = iota + 1
	EffectTransfer
	EffectMint
	EffectBurn
)

func (k EffectKind) String() string {
	switch k {
	case EffectCreateMint:
		return "create_mint"
	case EffectTransfer:
		return "transfer"
	case EffectMint:
		return "mint"
	case EffectBurn:
		return "burn"
	default:
		return fmt.Sprintf("effect(%d)", uint8(k))
	}
}

// Effect is one ledger mutation.
type Effect struct {
	Kind     EffectKind
	Asset    common.Address
	From     common.Address
	To       common.Address
	Amount   uint64
	Decimals uint8
}

func CreateMint(asset common.Address, decimals uint8) Effect {
	return Effect{Kind: EffectCreateMint, Asset: asset, Decimals: decimals}
}

func Transfer(asset, from, to common.Address, amount uint64) Effect {
	return Effect{Kind: EffectTransfer, Asset: asset, From: from, To: to, Amount: amount}
}

func MintTo(asset, to common.Address, amount uint64) Effect {
	return Effect{Kind: EffectMint, Asset: asset, To: to, Amount: amount}
}

func Burn(asset, from common.Address, amount uint64) Effect {
	return Effect{Kind: EffectBurn, Asset: asset, From: from, Amount: amount}
}

// Precondition pins a value observed before the changeset was built. A commit
// whose preconditions no longer hold fails with ErrStaleState.
type Precondition struct {
	Owner  common.Address
	Asset  common.Address
	Supply bool
	Amount uint64
}

func ExpectBalance(owner, asset common.Address, amount uint64) Precondition {
	return Precondition{Owner: owner, Asset: asset, Amount: amount}
}

func ExpectSupply(asset common.Address, amount uint64) Precondition {
	return Precondition{Asset: asset, Supply: true, Amount: amount}
}

// Changeset is one atomic unit of ledger work.
type Changeset struct {
	Preconditions []Precondition
	Effects       []Effect
	// Observed, when set, is the pool config the changeset was built from. The
	// commit fails with ErrStaleState unless the stored config still equals it.
	Observed *model.PoolConfig
	// Config, when set, is written together with the effects.
	Config *model.PoolConfig
	// CreateConfig requires that no config with Config.Seed exists yet.
	CreateConfig bool
}
