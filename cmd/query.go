package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"ore-boost-cli/api"
	"ore-boost-cli/instruction"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
)

// ownerArg parses an optional address argument, defaulting to the signer.
func ownerArg(args []string) (solana.PublicKey, bool, error) {
	if len(args) == 0 {
		return solana.PublicKey{}, false, nil
	}
	owner, err := solana.PublicKeyFromBase58(args[0])
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("invalid address %q: %w", args[0], err)
	}
	return owner, true, nil
}

// queryApp builds an app for read-only commands. The signer is only loaded
// when no address was given.
func queryApp(args []string) (*app, solana.PublicKey, error) {
	owner, given, err := ownerArg(args)
	if err != nil {
		return nil, owner, err
	}
	a, err := newApp(flags, !given)
	if err != nil {
		return nil, owner, err
	}
	if !given {
		owner = a.staker()
	}
	return a, owner, nil
}

func newBalancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances [ADDRESS]",
		Short: "Show SOL, token and staked balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, owner, err := queryApp(args)
			if err != nil {
				return err
			}
			return printBalances(cmd.Context(), a, owner)
		},
	}
}

func printBalances(ctx context.Context, a *app, owner solana.PublicKey) error {
	lamports, err := a.client.GetBalance(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("💰 Balances of " + owner.String()))
	fmt.Printf("   %-12s %s\n", "SOL", instruction.FormatBaseUnits(lamports, 9))
	for _, m := range a.cfg.Mints {
		balance, err := a.client.GetTokenBalance(ctx, owner, m.Address)
		if err != nil {
			return err
		}
		fmt.Printf("   %-12s %s\n", m.Name, instruction.FormatBaseUnits(balance.Amount, balance.Decimals))
	}

	accounts, err := a.rewards.StakeAccounts(ctx, owner)
	if err != nil {
		fmt.Println(warningStyle.Render("   Stake accounts unavailable: " + explainError(err)))
		return nil
	}
	if len(accounts) == 0 {
		return nil
	}
	fmt.Println(titleStyle.Render("📈 Staked"))
	for _, acct := range accounts {
		fmt.Printf("   %-12s staked %-20s rewards %s\n",
			a.cfg.MintName(acct.Mint),
			instruction.FormatBaseUnits(uint64(acct.StakedBalance), rewards.RewardScaleDecimals),
			rewards.FormatRewards(uint64(acct.RewardsBalance)))
	}
	return nil
}

func newAddressesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addresses MINT [STAKER]",
		Short: "Print the derived staking accounts of STAKER for MINT",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, staker, err := queryApp(args[1:])
			if err != nil {
				return err
			}
			mint, err := a.resolveMint(args[0])
			if err != nil {
				return err
			}
			return printAddresses(a, staker, mint)
		},
	}
}

func printAddresses(a *app, staker, mint solana.PublicKey) error {
	accounts, err := api.DerivedAccounts(a.deriver, a.version, staker, mint)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("🔑 %s accounts of %s for %s", a.version, staker, a.cfg.MintName(mint))))
	for _, name := range slices.Sorted(maps.Keys(accounts)) {
		fmt.Printf("   %-22s %s\n", name, accounts[name])
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [ADDRESS]",
		Short: "List recent staking transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, owner, err := queryApp(args)
			if err != nil {
				return err
			}
			events, err := a.client.GetStakeHistory(cmd.Context(), owner, a.historyPrograms(), a.encoder, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			printHistory(cmd.Context(), a, owner, events)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of recent transactions to scan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON")
	return cmd
}

func printHistory(ctx context.Context, a *app, owner solana.PublicKey, events []ore_protocol.StakeEvent) {
	if len(events) == 0 {
		fmt.Println(promptStyle.Render("No staking transactions found."))
		return
	}
	fmt.Println(titleStyle.Render("📜 Staking history of " + owner.String()))
	decimals := make(map[solana.PublicKey]uint8)
	for _, ev := range events {
		d, ok := decimals[ev.Mint]
		if !ok {
			d = a.cfg.DecimalsFallback
			if got, err := a.client.GetMintDecimals(ctx, ev.Mint); err == nil {
				d = got
			}
			decimals[ev.Mint] = d
		}
		fmt.Printf("   %-12s %s\n", a.cfg.MintName(ev.Mint), ev.Describe(d))
	}
}
