package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"ore-boost-cli/metrics"
)

var flags settings

var rootCmd = &cobra.Command{
	Use:   "ore-boost",
	Short: "ore-boost stakes, unstakes, migrates and claims ORE boost positions.",
	Long:  `A command-line client for ORE boost staking on Solana. Run without arguments in a terminal for the interactive menu.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnv()
		if enableMetrics {
			metrics.InitializePrometheusMetrics()
		}
	},
	RunE: run,
	// Errors are rendered by Execute.
	SilenceUsage:  true,
	SilenceErrors: true,
}

var enableMetrics bool

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "deployment YAML file (env "+envConfig+")")
	pf.StringVar(&flags.rpcURL, "rpc", "", "Solana RPC endpoint (env "+envRPCURL+")")
	pf.StringVar(&flags.rewardsURL, "rewards-url", "", "rewards service base URL (env "+envRewardsURL+")")
	pf.StringVarP(&flags.profile, "profile", "p", "", "wallet profile name (env "+envProfile+")")
	pf.StringVarP(&flags.keypairPath, "keypair", "k", "", "solana-keygen keypair file, overrides --profile")
	pf.StringVar(&flags.version, "program-version", "", "program version: v1, v2 or direct")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "skip confirmation prompts")
	pf.BoolVar(&enableMetrics, "metrics", false, "collect prometheus metrics")

	rootCmd.AddCommand(
		newStakeCmd(),
		newUnstakeCmd(),
		newMigrateCmd(),
		newClaimCmd(),
		newBalancesCmd(),
		newAddressesCmd(),
		newHistoryCmd(),
		newWatchCmd(),
		newServeCmd(),
		newProfileCmd(),
	)
}

// run is the interactive entry point used when no subcommand is given.
func run(cmd *cobra.Command, args []string) error {
	if !interactive() {
		return cmd.Help()
	}
	banner := figure.NewFigure("ORE BOOST", "larry3d", true)
	fmt.Println(titleStyle.Render(banner.String()))
	return runMenu(cmd.Context())
}

// Execute runs the command tree with ctx, exiting non-zero on failure.
func Execute(ctx context.Context) {
	defer klog.Flush()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render("❌ "+explainError(err)))
		klog.Flush()
		os.Exit(1)
	}
}
