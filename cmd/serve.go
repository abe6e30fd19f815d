package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"ore-boost-cli/api"
	"ore-boost-cli/instruction"
	"ore-boost-cli/metrics"
	"ore-boost-cli/poller"
	"ore-boost-cli/rewards"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [ADDRESS]",
		Short: "Serve balances, stake accounts and derived addresses over HTTP",
		Long:  `Serve the JSON API. With an ADDRESS (or a configured profile) the balance poller runs too and its state is served under /v1/snapshot and /v1/window.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics.InitializePrometheusMetrics()

			owner, given, err := ownerArg(args)
			if err != nil {
				return err
			}
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			if !given {
				if signer, err := loadSigner(flags); err == nil {
					owner = signer.PublicKey()
				} else {
					klog.Infof("no wallet configured, poller disabled: %v", err)
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			var view api.View
			if !owner.IsZero() {
				p := poller.New(a.cfg, owner, a.client, a.rewards)
				view = p
				g.Go(func() error { return ignoreCancel(p.Run(ctx)) })
			}
			srv := api.New(a.cfg, a.deriver, a.client, a.rewards, view)
			g.Go(func() error { return srv.ListenAndServe(ctx, addr) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "listen", ":8080", "listen address")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [ADDRESS]",
		Short: "Poll balances and rewards and print them as they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, owner, err := queryApp(args)
			if err != nil {
				return err
			}
			p := poller.New(a.cfg, owner, a.client, a.rewards)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return ignoreCancel(p.Run(ctx)) })
			g.Go(func() error {
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				var last string
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					out := renderSnapshot(a.cfg.MintName, p.Snapshot(), p.Window())
					if out != last {
						fmt.Print(out)
						last = out
					}
				}
			})
			return g.Wait()
		},
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// renderSnapshot prints a poller snapshot. Window timing is left out so
// unchanged balances print once.
func renderSnapshot(mintName func(solana.PublicKey) string, snap poller.Snapshot, window poller.WindowState) string {
	if snap.BalancesAt.IsZero() && snap.RewardsAt.IsZero() && len(snap.Errors) == 0 {
		return ""
	}
	out := fmt.Sprintf("\n%s  SOL %s", snap.BalancesAt.Format(time.TimeOnly), instruction.FormatBaseUnits(snap.Lamports, 9))
	for _, t := range snap.Tokens {
		out += fmt.Sprintf("  %s %s", t.Name, instruction.FormatBaseUnits(t.Amount, t.Decimals))
	}
	if window.Open {
		out += "  [stake window open]"
	}
	out += "\n"
	for _, acct := range snap.StakeAccounts {
		out += fmt.Sprintf("   %-12s rewards %s\n", mintName(acct.Mint), rewards.FormatRewards(uint64(acct.RewardsBalance)))
	}
	for _, source := range slices.Sorted(maps.Keys(snap.Errors)) {
		out += warningStyle.Render(fmt.Sprintf("   %s poll failed: %s", source, snap.Errors[source])) + "\n"
	}
	return out
}
