package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"ore-boost-cli/config"
	"ore-boost-cli/instruction"
	"ore-boost-cli/poller"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/stake"
)

func TestExplainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		prefix string
	}{
		{
			name:   "native shortfall",
			err:    &ore_protocol.InsufficientFundsError{Resource: ore_protocol.NativeFunds, Required: 10_000, Available: 5},
			prefix: "Not enough SOL",
		},
		{
			name:   "token shortfall",
			err:    &ore_protocol.InsufficientFundsError{Resource: ore_protocol.TokenFunds, Required: 10, Available: 5},
			prefix: "Not enough tokens",
		},
		{
			name:   "validation",
			err:    &stake.OperationError{Kind: stake.Validation, Op: instruction.Stake, State: stake.Validating, Err: errors.New("bad amount")},
			prefix: "Invalid request",
		},
		{
			name:   "ledger",
			err:    &ore_protocol.LedgerQueryError{Op: "get balance", Err: errors.New("503")},
			prefix: "Could not read the ledger",
		},
		{
			name:   "timeout",
			err:    &ore_protocol.ConfirmationTimeoutError{Waited: time.Minute, Err: context.DeadlineExceeded},
			prefix: "Transaction sent but not confirmed",
		},
		{
			name:   "submission",
			err:    &ore_protocol.SubmissionError{Stage: "send", Err: errors.New("blockhash not found")},
			prefix: "Transaction failed",
		},
		{
			name:   "unclassified",
			err:    errors.New("boom"),
			prefix: "boom",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Regexp(t, "^"+tc.prefix, explainError(tc.err))
		})
	}
}

func TestDescribeResult(t *testing.T) {
	sig := solana.Signature{1, 2, 3}

	assert.Empty(t, describeResult(nil))
	assert.Equal(t, "Nothing to migrate.", describeResult(&stake.Result{Kind: instruction.Migrate, NoOp: true}))

	out := describeResult(&stake.Result{Kind: instruction.Stake, Amount: 150_000_000_000, Decimals: 11, Signature: sig})
	assert.Equal(t, "Stake confirmed: 1.5\n   Transaction Signature: "+sig.String(), out)

	out = describeResult(&stake.Result{Kind: instruction.Migrate, Signature: sig})
	assert.Equal(t, "Migrate confirmed\n   Transaction Signature: "+sig.String(), out)
}

func TestDescribeClaimReport(t *testing.T) {
	cfg := config.Default()
	ore, lp := cfg.Mints[0].Address, cfg.Mints[1].Address
	sig := solana.Signature{9}

	assert.Equal(t, "No stake accounts found.\n", describeClaimReport(cfg, &stake.ClaimReport{}))

	out := describeClaimReport(cfg, &stake.ClaimReport{
		Threshold: cfg.ClaimMinRewards,
		Claims: []stake.MintClaim{
			{Mint: ore, Rewards: 1_000, Outcome: stake.ClaimSkipped},
			{Mint: lp, Rewards: 9_000_000, Outcome: stake.ClaimConfirmed, Signature: sig},
			{Mint: lp, Rewards: 9_000_000, Outcome: stake.ClaimFailed, Err: &rewards.APIError{Status: 500, Body: "down"}},
		},
	})
	assert.Contains(t, out, fmt.Sprintf("%-12s %-10s %s (below %s)", "ORE", "skipped", rewards.FormatRewards(1_000), rewards.FormatRewards(cfg.ClaimMinRewards)))
	assert.Contains(t, out, "confirmed  "+rewards.FormatRewards(9_000_000)+" "+sig.String())
	assert.Contains(t, out, "Rewards service error")
}

func TestRenderSnapshot(t *testing.T) {
	cfg := config.Default()
	assert.Empty(t, renderSnapshot(cfg.MintName, poller.Snapshot{}, poller.WindowState{}))

	snap := poller.Snapshot{
		Lamports:   2_500_000_000,
		Tokens:     []poller.TokenBalance{{Name: "ORE", Mint: cfg.Mints[0].Address, Amount: 300_000_000_000, Decimals: 11}},
		BalancesAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		StakeAccounts: []rewards.StakeAccount{
			{Mint: cfg.Mints[0].Address, StakedBalance: 1, RewardsBalance: 100_000_000_000},
		},
		Errors: map[string]string{"rewards": "timeout", "balances": "503"},
	}
	out := renderSnapshot(cfg.MintName, snap, poller.WindowState{Open: true})

	assert.Contains(t, out, "SOL 2.5  ORE 3  [stake window open]")
	assert.Contains(t, out, fmt.Sprintf("   %-12s rewards 1\n", "ORE"))
	assert.Less(t, strings.Index(out, "balances poll failed"), strings.Index(out, "rewards poll failed"))
}

func TestIgnoreCancel(t *testing.T) {
	assert.NoError(t, ignoreCancel(fmt.Errorf("serve: %w", context.Canceled)))
	assert.Error(t, ignoreCancel(errors.New("listen failed")))
}
