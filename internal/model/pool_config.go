package model

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps is the fee denominator; a fee of MaxFeeBps keeps the whole input.
const MaxFeeBps = 10_000

// DefaultPrecision is the decimal precision of newly created LP mints.
const DefaultPrecision = 6

// PoolConfig is the persisted state of one pool. Reserves are not part of it:
// they live in the ledger as balances of Address in MintX and MintY.
type PoolConfig struct {
	Seed      uint64         `json:"seed"`
	Authority Authority      `json:"authority"`
	MintX     common.Address `json:"mint_x"`
	MintY     common.Address `json:"mint_y"`
	FeeBps    uint16         `json:"fee_bps"`
	Locked    bool           `json:"locked"`
	DecimalsX uint8          `json:"decimals_x"`
	DecimalsY uint8          `json:"decimals_y"`
	Precision uint8          `json:"precision"`
	Address   common.Address `json:"address"`
	LPMint    common.Address `json:"lp_mint"`
}

// Validate checks the static invariants of a config record.
func (c PoolConfig) Validate() error {
	if c.FeeBps > MaxFeeBps {
		return fmt.Errorf("fee_bps %d exceeds %d", c.FeeBps, MaxFeeBps)
	}
	if c.MintX == c.MintY {
		return fmt.Errorf("mint_x and mint_y are the same asset")
	}
	return nil
}

// Authority is the optional capability allowed to lock, unlock and hand over
// control of a pool. The zero value holds no capability, and once cleared it
// cannot be granted again through the pool operations.
type Authority struct {
	holder common.Address
	set    bool
}

// NoAuthority returns an empty capability.
func NoAuthority() Authority {
	return Authority{}
}

// AuthorityOf returns a capability held by addr.
func AuthorityOf(addr common.Address) Authority {
	return Authority{holder: addr, set: true}
}

// Holder returns the capability holder and whether one is set.
func (a Authority) Holder() (common.Address, bool) {
	return a.holder, a.set
}

// IsSet reports whether a holder exists.
func (a Authority) IsSet() bool {
	return a.set
}

// HeldBy reports whether caller holds the capability.
func (a Authority) HeldBy(caller common.Address) bool {
	return a.set && a.holder == caller
}

func (a Authority) String() string {
	if !a.set {
		return "none"
	}
	return a.holder.Hex()
}

func (a Authority) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return json.Marshal(a.holder)
}

func (a *Authority) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Authority{}
		return nil
	}
	var holder common.Address
	if err := json.Unmarshal(data, &holder); err != nil {
		return fmt.Errorf("parse authority: %w", err)
	}
	*a = AuthorityOf(holder)
	return nil
}
