package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cpamm/internal/model"
)

// Memory is an in-process Ledger. Commits are serialized by a single lock.
type Memory struct {
	mu       sync.RWMutex
	balances map[BalanceKey]uint64
	supplies map[common.Address]uint64
	decimals map[common.Address]uint8
	configs  map[uint64]model.PoolConfig
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[BalanceKey]uint64),
		supplies: make(map[common.Address]uint64),
		decimals: make(map[common.Address]uint8),
		configs:  make(map[uint64]model.PoolConfig),
	}
}

func (m *Memory) Balance(ctx context.Context, owner, asset common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[BalanceKey{Owner: owner, Asset: asset}], nil
}

func (m *Memory) Supply(ctx context.Context, asset common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supplies[asset], nil
}

func (m *Memory) Decimals(ctx context.Context, asset common.Address) (uint8, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	decimals, ok := m.decimals[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, asset.Hex())
	}
	return decimals, nil
}

func (m *Memory) PoolConfig(ctx context.Context, seed uint64) (model.PoolConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[seed]
	return cfg, ok, nil
}

func (m *Memory) Commit(ctx context.Context, cs Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged, err := Stage(memoryView{m}, cs)
	if err != nil {
		return err
	}

	for asset, decimals := range staged.NewMints {
		m.decimals[asset] = decimals
	}
	for asset, supply := range staged.Supplies {
		m.supplies[asset] = supply
	}
	for key, balance := range staged.Balances {
		if balance == 0 {
			delete(m.balances, key)
			continue
		}
		m.balances[key] = balance
	}
	if cs.Config != nil {
		m.configs[cs.Config.Seed] = *cs.Config
	}
	return nil
}

// memoryView reads a Memory whose lock is already held.
type memoryView struct {
	m *Memory
}

func (v memoryView) Balance(owner, asset common.Address) (uint64, error) {
	return v.m.balances[BalanceKey{Owner: owner, Asset: asset}], nil
}

func (v memoryView) Supply(asset common.Address) (uint64, error) {
	return v.m.supplies[asset], nil
}

func (v memoryView) MintExists(asset common.Address) (bool, error) {
	_, ok := v.m.decimals[asset]
	return ok, nil
}

func (v memoryView) Config(seed uint64) (model.PoolConfig, bool, error) {
	cfg, ok := v.m.configs[seed]
	return cfg, ok, nil
}
