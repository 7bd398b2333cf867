package aggregate

import (
	"fmt"

	"github.com/holiman/uint256"

	"cpamm/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	Seed          uint64
	Pool          string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeX       *uint256.Int
	VolumeY       *uint256.Int
	FeeX          *uint256.Int
	FeeY          *uint256.Int
	LPMinted      *uint256.Int
	LPBurned      *uint256.Int
	Locked        bool
	LastTS        uint64
}

func NewAccumulator(receipt model.Receipt, ts, windowStart, windowEnd uint64, locked bool) *Accumulator {
	return &Accumulator{
		Seed:        receipt.Seed,
		Pool:        receipt.Pool,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     new(uint256.Int),
		VolumeY:     new(uint256.Int),
		FeeX:        new(uint256.Int),
		FeeY:        new(uint256.Int),
		LPMinted:    new(uint256.Int),
		LPBurned:    new(uint256.Int),
		Locked:      locked,
		LastTS:      ts,
	}
}

// AddReceipt folds one committed operation into the window.
func (a *Accumulator) AddReceipt(receipt model.Receipt, ts uint64) error {
	if ts >= a.LastTS {
		a.LastTS = ts
	}

	switch receipt.Operation {
	case model.OpSwap:
		return a.applySwap(receipt)
	case model.OpInitialize, model.OpDeposit:
		a.DepositCount++
		add(a.LPMinted, receipt.LPMinted)
	case model.OpWithdraw:
		a.WithdrawCount++
		add(a.LPBurned, receipt.LPBurned)
	case model.OpLock:
		a.Locked = true
	case model.OpUnlock:
		a.Locked = false
	case model.OpUpdateAuthority:
	default:
		return fmt.Errorf("unknown operation %q", receipt.Operation)
	}
	return nil
}

func (a *Accumulator) applySwap(receipt model.Receipt) error {
	direction, err := model.ParseDirection(receipt.Direction)
	if err != nil {
		return err
	}

	add(a.VolumeX, receipt.AmountInX)
	add(a.VolumeX, receipt.AmountOutX)
	add(a.VolumeY, receipt.AmountInY)
	add(a.VolumeY, receipt.AmountOutY)

	if direction == model.XToY {
		add(a.FeeX, receipt.Fee)
	} else {
		add(a.FeeY, receipt.Fee)
	}

	a.SwapCount++
	return nil
}

func add(target *uint256.Int, amount uint64) {
	if amount == 0 {
		return
	}
	target.Add(target, uint256.NewInt(amount))
}
