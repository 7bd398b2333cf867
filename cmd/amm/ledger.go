package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpamm/internal/ledger"
)

// The ledger commands administer the token ledger directly. They exist so a
// LevelDB or Postgres ledger can be populated for pools to run against.
func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Administer the token ledger",
	}

	createMint := &cobra.Command{
		Use:   "create-mint",
		Short: "Register a token mint",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			rawMint, _ := cmd.Flags().GetString("mint")
			decimals, _ := cmd.Flags().GetUint8("decimals")
			mint, err := parseAddress("mint", rawMint)
			if err != nil {
				return err
			}
			if err := a.ledger.Commit(ctx, ledger.Changeset{Effects: []ledger.Effect{ledger.CreateMint(mint, decimals)}}); err != nil {
				return err
			}
			a.logger.Info("mint created", zap.String("mint", mint.Hex()), zap.Uint8("decimals", decimals))
			return printJSON(cmd, map[string]any{"mint": mint.Hex(), "decimals": decimals})
		}),
	}
	createMint.Flags().String("mint", "", "mint address")
	createMint.Flags().Uint8("decimals", 6, "token decimals")

	mintTo := &cobra.Command{
		Use:   "mint",
		Short: "Issue tokens of a mint to an owner",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			rawMint, _ := cmd.Flags().GetString("mint")
			rawTo, _ := cmd.Flags().GetString("to")
			amount, _ := cmd.Flags().GetUint64("amount")
			mint, err := parseAddress("mint", rawMint)
			if err != nil {
				return err
			}
			to, err := parseAddress("to", rawTo)
			if err != nil {
				return err
			}
			err = a.retry(ctx, func(ctx context.Context) error {
				return a.ledger.Commit(ctx, ledger.Changeset{Effects: []ledger.Effect{ledger.MintTo(mint, to, amount)}})
			})
			if err != nil {
				return err
			}
			a.logger.Info("tokens minted", zap.String("mint", mint.Hex()), zap.String("to", to.Hex()), zap.Uint64("amount", amount))
			return printBalance(ctx, cmd, a, to.Hex(), mint.Hex())
		}),
	}
	mintTo.Flags().String("mint", "", "mint address")
	mintTo.Flags().String("to", "", "recipient address")
	mintTo.Flags().Uint64("amount", 0, "amount (base units)")

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show an owner's balance of a mint",
		RunE: run(func(ctx context.Context, cmd *cobra.Command, a *app) error {
			rawOwner, _ := cmd.Flags().GetString("owner")
			rawMint, _ := cmd.Flags().GetString("mint")
			return printBalance(ctx, cmd, a, rawOwner, rawMint)
		}),
	}
	balance.Flags().String("owner", "", "owner address")
	balance.Flags().String("mint", "", "mint address")

	cmd.AddCommand(createMint, mintTo, balance)
	return cmd
}

func printBalance(ctx context.Context, cmd *cobra.Command, a *app, rawOwner, rawMint string) error {
	owner, err := parseAddress("owner", rawOwner)
	if err != nil {
		return err
	}
	mint, err := parseAddress("mint", rawMint)
	if err != nil {
		return err
	}
	amount, err := a.ledger.Balance(ctx, owner, mint)
	if err != nil {
		return err
	}
	supply, err := a.ledger.Supply(ctx, mint)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{
		"owner":  owner.Hex(),
		"mint":   mint.Hex(),
		"amount": amount,
		"supply": supply,
	})
}
