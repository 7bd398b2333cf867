package main

import (
	"context"

	"github.com/spf13/cobra"

	"cpamm/internal/model"
	"cpamm/internal/pool"
)

func newQuoteCmd() *cobra.Command {
	quote := &cobra.Command{
		Use:   "quote",
		Short: "Price an operation against current reserves without committing it",
	}

	deposit := &cobra.Command{
		Use:   "deposit",
		Short: "Token amounts needed to mint LP shares",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			lp, _ := cmd.Flags().GetUint64("lp")
			maxX, _ := cmd.Flags().GetUint64("max-x")
			maxY, _ := cmd.Flags().GetUint64("max-y")
			q, err := a.engine.QuoteDeposit(ctx, pool.DepositParams{Seed: seed, LPAmount: lp, MaxX: maxX, MaxY: maxY})
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		}),
	}
	deposit.Flags().Uint64("seed", 0, "pool seed")
	deposit.Flags().Uint64("lp", 0, "LP shares to mint")
	deposit.Flags().Uint64("max-x", 0, "most X to pay (0 = unbounded; required on a drained pool)")
	deposit.Flags().Uint64("max-y", 0, "most Y to pay (0 = unbounded; required on a drained pool)")

	withdraw := &cobra.Command{
		Use:   "withdraw",
		Short: "Token amounts paid for burning LP shares",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			lp, _ := cmd.Flags().GetUint64("lp")
			q, err := a.engine.QuoteWithdraw(ctx, seed, lp)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		}),
	}
	withdraw.Flags().Uint64("seed", 0, "pool seed")
	withdraw.Flags().Uint64("lp", 0, "LP shares to burn")

	swap := &cobra.Command{
		Use:   "swap",
		Short: "Output and fee of a swap",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			amountIn, _ := cmd.Flags().GetUint64("amount-in")
			rawDirection, _ := cmd.Flags().GetString("direction")
			direction, err := model.ParseDirection(rawDirection)
			if err != nil {
				return err
			}
			q, err := a.engine.QuoteSwap(ctx, seed, direction, amountIn)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		}),
	}
	swap.Flags().Uint64("seed", 0, "pool seed")
	swap.Flags().String("direction", "x_to_y", "x_to_y or y_to_x")
	swap.Flags().Uint64("amount-in", 0, "input amount (base units)")

	quote.AddCommand(deposit, withdraw, swap)
	return quote
}
