package curve

import (
	sdkmath "cosmossdk.io/math"

	"cpamm/internal/ammerr"
)

// SpotPrice returns the marginal price of one whole X in whole Y, adjusting
// the base-unit reserves by each token's decimals.
func SpotPrice(reserveX, reserveY uint64, decimalsX, decimalsY uint8) (sdkmath.LegacyDec, error) {
	if reserveX == 0 || reserveY == 0 {
		return sdkmath.LegacyZeroDec(), ammerr.ErrZeroBalance.Wrap("spot price needs both reserves")
	}
	if decimalsX > MaxPrecision || decimalsY > MaxPrecision {
		return sdkmath.LegacyZeroDec(), ammerr.ErrInvalidPrecision.Wrapf("decimals %d/%d", decimalsX, decimalsY)
	}
	num := sdkmath.NewIntFromUint64(reserveY).Mul(sdkmath.NewIntWithDecimal(1, int(decimalsX)))
	den := sdkmath.NewIntFromUint64(reserveX).Mul(sdkmath.NewIntWithDecimal(1, int(decimalsY)))
	return sdkmath.LegacyNewDecFromInt(num).Quo(sdkmath.LegacyNewDecFromInt(den)), nil
}
