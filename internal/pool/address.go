package pool

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"cpamm/internal/ammerr"
	"cpamm/internal/model"
)

var (
	configPrefix = []byte("config")
	lpPrefix     = []byte("lp")
)

// PoolAddress derives the account that owns a pool's vaults from its seed.
func PoolAddress(seed uint64) common.Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	return common.BytesToAddress(crypto.Keccak256(configPrefix, buf[:]))
}

// LPMintAddress derives the liquidity-share mint of a pool.
func LPMintAddress(pool common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(lpPrefix, pool.Bytes()))
}

func verifyDerivation(cfg model.PoolConfig) error {
	want := PoolAddress(cfg.Seed)
	if cfg.Address != want {
		return ammerr.ErrBumpError.Wrapf("pool %d stored at %s, derives %s", cfg.Seed, cfg.Address.Hex(), want.Hex())
	}
	if lp := LPMintAddress(want); cfg.LPMint != lp {
		return ammerr.ErrBumpError.Wrapf("pool %d lp mint %s, derives %s", cfg.Seed, cfg.LPMint.Hex(), lp.Hex())
	}
	return nil
}
