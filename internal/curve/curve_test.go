package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"cpamm/internal/ammerr"
)

func TestInitialDeposit(t *testing.T) {
	got, err := InitialDeposit(400, 900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LP != 600 || got.X != 400 || got.Y != 900 {
		t.Fatalf("quote mismatch: %+v", got)
	}

	got, err = InitialDeposit(math.MaxUint64, math.MaxUint64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LP != math.MaxUint64 {
		t.Fatalf("lp = %d, want max uint64", got.LP)
	}

	if _, err := InitialDeposit(0, 10); !errors.Is(err, ammerr.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestSwapAmountOut(t *testing.T) {
	tests := []struct {
		name       string
		reserveIn  uint64
		reserveOut uint64
		amountIn   uint64
		feeBps     uint16
		wantOut    uint64
		wantFee    uint64
	}{
		{name: "fee truncates to zero", reserveIn: 1000, reserveOut: 1000, amountIn: 100, feeBps: 30, wantOut: 90, wantFee: 0},
		{name: "thirty bps", reserveIn: 1000, reserveOut: 1000, amountIn: 1000, feeBps: 30, wantOut: 499, wantFee: 3},
		{name: "no fee", reserveIn: 1000, reserveOut: 2000, amountIn: 100, feeBps: 0, wantOut: 181, wantFee: 0},
		{name: "whole input is fee", reserveIn: 1000, reserveOut: 1000, amountIn: 500, feeBps: 10000, wantOut: 0, wantFee: 500},
		{name: "tiny input", reserveIn: 1_000_000, reserveOut: 1_000_000, amountIn: 1, feeBps: 30, wantOut: 0, wantFee: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SwapAmountOut(tt.reserveIn, tt.reserveOut, tt.amountIn, tt.feeBps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.AmountOut != tt.wantOut || got.Fee != tt.wantFee {
				t.Fatalf("quote = %+v, want out=%d fee=%d", got, tt.wantOut, tt.wantFee)
			}
		})
	}
}

func TestSwapAmountOutErrors(t *testing.T) {
	if _, err := SwapAmountOut(0, 1000, 10, 30); !errors.Is(err, ammerr.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance for empty reserve in, got %v", err)
	}
	if _, err := SwapAmountOut(1000, 0, 10, 30); !errors.Is(err, ammerr.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance for empty reserve out, got %v", err)
	}
	if _, err := SwapAmountOut(1000, 1000, 10, 10001); !errors.Is(err, ammerr.ErrInvalidFee) {
		t.Fatalf("expected invalid fee, got %v", err)
	}
	if _, err := SwapAmountOut(math.MaxUint64, 1000, 1, 0); !errors.Is(err, ammerr.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestDepositAmountsRoundUp(t *testing.T) {
	got, err := DepositAmountsFromL(1000, 3001, 1000, 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.X != 10 || got.Y != 31 || got.LP != 10 {
		t.Fatalf("quote mismatch: %+v", got)
	}
}

func TestWithdrawAmountsRoundDown(t *testing.T) {
	got, err := WithdrawAmountsFromL(1000, 3001, 1000, 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.X != 10 || got.Y != 30 || got.LP != 10 {
		t.Fatalf("quote mismatch: %+v", got)
	}

	all, err := WithdrawAmountsFromL(1000, 3001, 1000, 1000, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.X != 1000 || all.Y != 3001 {
		t.Fatalf("full burn should drain the pool exactly: %+v", all)
	}
}

func TestLiquidityQuoteErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"deposit zero supply", func() error {
			_, err := DepositAmountsFromL(10, 10, 0, 1, 6)
			return err
		}, ammerr.ErrZeroBalance},
		{"withdraw zero supply", func() error {
			_, err := WithdrawAmountsFromL(10, 10, 0, 1, 6)
			return err
		}, ammerr.ErrZeroBalance},
		{"deposit bad precision", func() error {
			_, err := DepositAmountsFromL(10, 10, 10, 1, 19)
			return err
		}, ammerr.ErrInvalidPrecision},
		{"withdraw bad precision", func() error {
			_, err := WithdrawAmountsFromL(10, 10, 10, 1, 200)
			return err
		}, ammerr.ErrInvalidPrecision},
		{"withdraw more than supply", func() error {
			_, err := WithdrawAmountsFromL(10, 10, 10, 11, 6)
			return err
		}, ammerr.ErrInsufficientBalance},
		{"deposit supply overflow", func() error {
			_, err := DepositAmountsFromL(10, 10, 1, math.MaxUint64, 6)
			return err
		}, ammerr.ErrOverflow},
		{"deposit amount overflow", func() error {
			_, err := DepositAmountsFromL(math.MaxUint64, 10, 1, 2, 6)
			return err
		}, ammerr.ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSwapNeverDrainsAndKeepsInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := rapid.Uint64Range(1, 1<<48).Draw(t, "reserveIn")
		reserveOut := rapid.Uint64Range(1, 1<<48).Draw(t, "reserveOut")
		amountIn := rapid.Uint64Range(1, 1<<48).Draw(t, "amountIn")
		feeBps := rapid.Uint16Range(0, 10000).Draw(t, "feeBps")

		quote, err := SwapAmountOut(reserveIn, reserveOut, amountIn, feeBps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.AmountOut >= reserveOut {
			t.Fatalf("output %d drains reserve %d", quote.AmountOut, reserveOut)
		}

		before := ConstantProduct(reserveIn, reserveOut)
		after := new(uint256.Int).Mul(
			uint256.NewInt(reserveIn+amountIn),
			uint256.NewInt(reserveOut-quote.AmountOut),
		)
		if after.Lt(before) {
			t.Fatalf("k decreased: %s -> %s", before, after)
		}
	})
}

func TestDepositThenWithdrawNeverPaysMore(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveX := rapid.Uint64Range(1, 1<<40).Draw(t, "reserveX")
		reserveY := rapid.Uint64Range(1, 1<<40).Draw(t, "reserveY")
		supply := rapid.Uint64Range(1, 1<<40).Draw(t, "supply")
		lp := rapid.Uint64Range(1, supply).Draw(t, "lp")

		in, err := DepositAmountsFromL(reserveX, reserveY, supply, lp, 6)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		out, err := WithdrawAmountsFromL(reserveX+in.X, reserveY+in.Y, supply+lp, lp, 6)
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if out.X > in.X || out.Y > in.Y {
			t.Fatalf("round trip paid out %+v for %+v", out, in)
		}
	})
}
