// Package ammerr holds the closed set of failure kinds shared by the curve
// math and the pool orchestrators.
package ammerr

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the registration namespace of every pool error.
const Codespace = "amm"

// Pool engine sentinel errors. Codes are stable and part of the receipt format.
var (
	ErrDefault                  = errorsmod.Register(Codespace, 2, "default error")
	ErrPoolLocked               = errorsmod.Register(Codespace, 3, "this pool is locked")
	ErrSlippageExceeded         = errorsmod.Register(Codespace, 4, "slippage exceeded")
	ErrOverflow                 = errorsmod.Register(Codespace, 5, "overflow detected")
	ErrUnderflow                = errorsmod.Register(Codespace, 6, "underflow detected")
	ErrInvalidToken             = errorsmod.Register(Codespace, 7, "invalid token")
	ErrLiquidityLessThanMinimum = errorsmod.Register(Codespace, 8, "actual liquidity is less than minimum")
	ErrBumpError                = errorsmod.Register(Codespace, 9, "pool identity mismatch")
	ErrCurveError               = errorsmod.Register(Codespace, 10, "curve error")
	ErrInvalidFee               = errorsmod.Register(Codespace, 11, "fee is greater than 100%")
	ErrInvalidAuthority         = errorsmod.Register(Codespace, 12, "invalid update authority")
	ErrNoAuthoritySet           = errorsmod.Register(Codespace, 13, "no update authority set")
	ErrInvalidAmount            = errorsmod.Register(Codespace, 14, "invalid amount")
	ErrInvalidPrecision         = errorsmod.Register(Codespace, 15, "invalid precision")
	ErrInsufficientBalance      = errorsmod.Register(Codespace, 16, "insufficient balance")
	ErrZeroBalance              = errorsmod.Register(Codespace, 17, "zero balance")
)

var all = []*errorsmod.Error{
	ErrDefault,
	ErrPoolLocked,
	ErrSlippageExceeded,
	ErrOverflow,
	ErrUnderflow,
	ErrInvalidToken,
	ErrLiquidityLessThanMinimum,
	ErrBumpError,
	ErrCurveError,
	ErrInvalidFee,
	ErrInvalidAuthority,
	ErrNoAuthoritySet,
	ErrInvalidAmount,
	ErrInvalidPrecision,
	ErrInsufficientBalance,
	ErrZeroBalance,
}

// Kind returns the taxonomy member err belongs to, or nil when err does not
// originate from this package.
func Kind(err error) *errorsmod.Error {
	if err == nil {
		return nil
	}
	for _, kind := range all {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code returns the registered code of err, 0 for nil and the ErrDefault code
// for errors outside the taxonomy.
func Code(err error) uint32 {
	if err == nil {
		return 0
	}
	if kind := Kind(err); kind != nil {
		return kind.ABCICode()
	}
	return ErrDefault.ABCICode()
}

// Label is the short metric label for err.
func Label(err error) string {
	switch kind := Kind(err); kind {
	case nil:
		if err == nil {
			return "ok"
		}
		return "external"
	case ErrPoolLocked:
		return "pool_locked"
	case ErrSlippageExceeded:
		return "slippage_exceeded"
	case ErrOverflow, ErrUnderflow, ErrCurveError:
		return "arithmetic"
	case ErrInvalidAuthority, ErrNoAuthoritySet:
		return "authority"
	case ErrInvalidAmount, ErrInvalidFee, ErrInvalidToken, ErrInvalidPrecision:
		return "invalid_input"
	default:
		return "rejected"
	}
}
