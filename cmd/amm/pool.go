package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cpamm/internal/model"
	"cpamm/internal/pool"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pool and seed it with both tokens",
		RunE:  run(runInit),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().String("mint-x", "", "token X mint address")
	cmd.Flags().String("mint-y", "", "token Y mint address")
	cmd.Flags().Uint64("amount-x", 0, "initial token X amount (base units)")
	cmd.Flags().Uint64("amount-y", 0, "initial token Y amount (base units)")
	cmd.Flags().Uint16("fee-bps", 30, "swap fee in basis points")
	cmd.Flags().String("authority", "", "authority address (empty for none)")
	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, a *app) error {
	caller, err := a.caller(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	seed, _ := flags.GetUint64("seed")
	rawX, _ := flags.GetString("mint-x")
	rawY, _ := flags.GetString("mint-y")
	amountX, _ := flags.GetUint64("amount-x")
	amountY, _ := flags.GetUint64("amount-y")
	feeBps, _ := flags.GetUint16("fee-bps")
	rawAuthority, _ := flags.GetString("authority")

	mintX, err := parseAddress("mint-x", rawX)
	if err != nil {
		return err
	}
	mintY, err := parseAddress("mint-y", rawY)
	if err != nil {
		return err
	}
	authority := model.NoAuthority()
	if rawAuthority != "" {
		holder, err := parseAddress("authority", rawAuthority)
		if err != nil {
			return err
		}
		authority = model.AuthorityOf(holder)
	}

	var (
		cfg   model.PoolConfig
		quote model.LiquidityQuote
	)
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		cfg, quote, err = a.engine.Initialize(ctx, caller, pool.InitializeParams{
			Seed:      seed,
			MintX:     mintX,
			MintY:     mintY,
			AmountX:   amountX,
			AmountY:   amountY,
			FeeBps:    feeBps,
			Authority: authority,
		})
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, struct {
		Config model.PoolConfig     `json:"config"`
		Quote  model.LiquidityQuote `json:"deposit"`
	}{cfg, quote})
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Mint LP shares by adding both tokens proportionally",
		RunE:  run(runDeposit),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().Uint64("lp", 0, "LP shares to mint")
	cmd.Flags().Uint64("max-x", 0, "most token X to pay")
	cmd.Flags().Uint64("max-y", 0, "most token Y to pay")
	return cmd
}

func runDeposit(ctx context.Context, cmd *cobra.Command, a *app) error {
	caller, err := a.caller(cmd)
	if err != nil {
		return err
	}
	var p pool.DepositParams
	p.Seed, _ = cmd.Flags().GetUint64("seed")
	p.LPAmount, _ = cmd.Flags().GetUint64("lp")
	p.MaxX, _ = cmd.Flags().GetUint64("max-x")
	p.MaxY, _ = cmd.Flags().GetUint64("max-y")

	var quote model.LiquidityQuote
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		quote, err = a.engine.Deposit(ctx, caller, p)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, quote)
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn LP shares for a proportional share of both reserves",
		RunE:  run(runWithdraw),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().Uint64("lp", 0, "LP shares to burn")
	cmd.Flags().Uint64("min-x", 0, "least token X to receive")
	cmd.Flags().Uint64("min-y", 0, "least token Y to receive")
	return cmd
}

func runWithdraw(ctx context.Context, cmd *cobra.Command, a *app) error {
	caller, err := a.caller(cmd)
	if err != nil {
		return err
	}
	var p pool.WithdrawParams
	p.Seed, _ = cmd.Flags().GetUint64("seed")
	p.LPAmount, _ = cmd.Flags().GetUint64("lp")
	p.MinX, _ = cmd.Flags().GetUint64("min-x")
	p.MinY, _ = cmd.Flags().GetUint64("min-y")

	var quote model.LiquidityQuote
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		quote, err = a.engine.Withdraw(ctx, caller, p)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, quote)
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Sell one pool token for the other",
		RunE:  run(runSwap),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().String("direction", "x_to_y", "x_to_y or y_to_x")
	cmd.Flags().Uint64("amount-in", 0, "input amount (base units)")
	cmd.Flags().Uint64("min-out", 0, "least output to accept")
	return cmd
}

func runSwap(ctx context.Context, cmd *cobra.Command, a *app) error {
	caller, err := a.caller(cmd)
	if err != nil {
		return err
	}
	rawDirection, _ := cmd.Flags().GetString("direction")
	direction, err := model.ParseDirection(rawDirection)
	if err != nil {
		return err
	}
	p := pool.SwapParams{Direction: direction}
	p.Seed, _ = cmd.Flags().GetUint64("seed")
	p.AmountIn, _ = cmd.Flags().GetUint64("amount-in")
	p.MinAmountOut, _ = cmd.Flags().GetUint64("min-out")

	var quote model.SwapQuote
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		quote, err = a.engine.Swap(ctx, caller, p)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, quote)
}

func newLockCmd(lock bool) *cobra.Command {
	use, short := "unlock", "Reopen a locked pool"
	if lock {
		use, short = "lock", "Stop deposits, withdrawals and swaps on a pool"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			caller, err := a.caller(cmd)
			if err != nil {
				return err
			}
			seed, _ := cmd.Flags().GetUint64("seed")
			err = a.retry(ctx, func(ctx context.Context) error {
				if lock {
					return a.engine.Lock(ctx, caller, seed)
				}
				return a.engine.Unlock(ctx, caller, seed)
			})
			if err != nil {
				return err
			}
			return printState(ctx, cmd, a, seed)
		}),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	return cmd
}

func newSetAuthorityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-authority",
		Short: "Hand the pool authority to a new holder, or clear it for good",
		RunE:  run(runSetAuthority),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().String("new-authority", "", "address of the new holder")
	cmd.Flags().Bool("clear", false, "remove the authority permanently")
	return cmd
}

func runSetAuthority(ctx context.Context, cmd *cobra.Command, a *app) error {
	caller, err := a.caller(cmd)
	if err != nil {
		return err
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	raw, _ := cmd.Flags().GetString("new-authority")
	clearAuthority, _ := cmd.Flags().GetBool("clear")

	next := model.NoAuthority()
	switch {
	case clearAuthority && raw != "":
		return fmt.Errorf("--clear and --new-authority are exclusive")
	case !clearAuthority:
		holder, err := parseAddress("new-authority", raw)
		if err != nil {
			return err
		}
		next = model.AuthorityOf(holder)
	}

	err = a.retry(ctx, func(ctx context.Context) error {
		return a.engine.UpdateAuthority(ctx, caller, seed, next)
	})
	if err != nil {
		return err
	}
	return printState(ctx, cmd, a, seed)
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Show a pool's config, reserves and spot price",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			return printState(ctx, cmd, a, seed)
		}),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	return cmd
}

func printState(ctx context.Context, cmd *cobra.Command, a *app, seed uint64) error {
	state, err := a.engine.State(ctx, seed)
	if err != nil {
		return err
	}
	return printJSON(cmd, state)
}
