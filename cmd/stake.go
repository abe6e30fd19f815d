package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"ore-boost-cli/instruction"
	"ore-boost-cli/stake"
)

// errCancelled is returned when the user declines a confirmation.
var errCancelled = errors.New("cancelled")

func printResult(res *stake.Result) {
	if res == nil {
		return
	}
	if res.NoOp {
		fmt.Println(infoStyle.Render(describeResult(res)))
		return
	}
	if len(res.Steps) > 1 {
		fmt.Print(promptStyle.Render(describeSteps(res.Steps)))
		fmt.Println()
	}
	fmt.Println(successStyle.Render("✅ " + describeResult(res)))
}

// printPending shows the signature of a sent transaction whose outcome is
// unknown so the user can check it before retrying.
func printPending(res *stake.Result, err error) {
	if res != nil && !res.Signature.IsZero() && stake.IsTimeout(err) {
		fmt.Println(warningStyle.Render("   Pending signature: " + res.Signature.String()))
	}
}

func operationFor(a *app, kind instruction.OperationKind, mintName, amount string) (stake.Operation, error) {
	mint, err := a.resolveMint(mintName)
	if err != nil {
		return stake.Operation{}, err
	}
	return stake.Operation{
		Kind:    kind,
		Version: a.version,
		Staker:  a.staker(),
		Mint:    mint,
		Amount:  amount,
	}, nil
}

func performStake(ctx context.Context, a *app, op stake.Operation) error {
	ok, err := confirm(flags, fmt.Sprintf("Stake %s %s (%s)?", op.Amount, a.cfg.MintName(op.Mint), op.Version))
	if err != nil {
		return err
	}
	if !ok {
		return errCancelled
	}
	res, err := a.service.Perform(ctx, op)
	printPending(res, err)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func newStakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake MINT AMOUNT",
		Short: "Stake AMOUNT of MINT, opening the stake record when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			op, err := operationFor(a, instruction.Stake, args[0], args[1])
			if err != nil {
				return err
			}
			return performStake(cmd.Context(), a, op)
		},
	}
}

func newUnstakeCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "unstake MINT [AMOUNT]",
		Short: "Withdraw AMOUNT of MINT, or everything above the reserve with --all",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 2) {
				return fmt.Errorf("give either AMOUNT or --all")
			}
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			amount := ""
			if len(args) == 2 {
				amount = args[1]
			}
			op, err := operationFor(a, instruction.Unstake, args[0], amount)
			if err != nil {
				return err
			}

			what := amount
			if all {
				what = "all"
			}
			ok, err := confirm(flags, fmt.Sprintf("Unstake %s %s (%s)?", what, a.cfg.MintName(op.Mint), op.Version))
			if err != nil {
				return err
			}
			if !ok {
				return errCancelled
			}

			var res *stake.Result
			if all {
				res, err = a.service.UnstakeAll(cmd.Context(), op)
			} else {
				res, err = a.service.Perform(cmd.Context(), op)
			}
			printPending(res, err)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "unstake the whole balance less the configured reserve")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var thenStake string
	cmd := &cobra.Command{
		Use:   "migrate MINT",
		Short: "Move legacy delegated stake of MINT to the current record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			// only the v2 delegation table defines migrate
			a.version = instruction.V2
			op, err := operationFor(a, instruction.Migrate, args[0], "")
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("Migrate legacy %s stake?", a.cfg.MintName(op.Mint))
			if thenStake != "" {
				msg = fmt.Sprintf("Migrate legacy %s stake and then stake %s?", a.cfg.MintName(op.Mint), thenStake)
			}
			ok, err := confirm(flags, msg)
			if err != nil {
				return err
			}
			if !ok {
				return errCancelled
			}

			if thenStake == "" {
				res, err := a.service.Migrate(cmd.Context(), op)
				printPending(res, err)
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			}

			op.Amount = thenStake
			results, err := a.service.MigrateAndStake(cmd.Context(), op)
			for _, res := range results {
				printPending(res, err)
				printResult(res)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&thenStake, "then-stake", "", "stake this amount after migrating")
	return cmd
}

func newClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim staking rewards of every mint above the claim threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			ok, err := confirm(flags, "Claim rewards for all staked mints?")
			if err != nil {
				return err
			}
			if !ok {
				return errCancelled
			}
			return runClaim(cmd.Context(), a, a.staker())
		},
	}
}

func runClaim(ctx context.Context, a *app, staker solana.PublicKey) error {
	report, err := a.service.Claim(ctx, staker, a.version)
	if err != nil {
		return err
	}
	fmt.Print(describeClaimReport(a.cfg, report))
	if n := report.Count(stake.ClaimFailed); n > 0 {
		return fmt.Errorf("%d of %d claims failed", n, len(report.Claims))
	}
	return nil
}
