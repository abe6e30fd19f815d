package cmd

import (
	"errors"
	"fmt"
	"strings"

	"ore-boost-cli/config"
	"ore-boost-cli/instruction"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/stake"
	"ore-boost-cli/txbuilder"
)

// explainError turns a failed operation into the message shown to the user.
func explainError(err error) string {
	var funds *ore_protocol.InsufficientFundsError
	if errors.As(err, &funds) {
		if funds.Resource == ore_protocol.NativeFunds {
			return "Not enough SOL to pay transaction fees. " + funds.Error()
		}
		return "Not enough tokens for this stake. " + funds.Error()
	}

	switch kind := stake.Classify(err); kind {
	case stake.Validation:
		return "Invalid request: " + err.Error()
	case stake.Derivation:
		return "Could not derive staking accounts (check the deployment config): " + err.Error()
	case stake.LedgerQuery:
		return "Could not read the ledger, try again: " + err.Error()
	case stake.Submission:
		return "Transaction failed, try again: " + err.Error()
	case stake.ConfirmationTimeout:
		return "Transaction sent but not confirmed in time. It may still land, check an explorer before retrying: " + err.Error()
	case stake.RewardsAPI:
		return "Rewards service error, on-chain state is unchanged: " + err.Error()
	}
	return err.Error()
}

// describeSteps lists the instructions of a transaction, marking setup ones.
func describeSteps(steps []txbuilder.Step) string {
	var b strings.Builder
	for i, s := range steps {
		marker := " "
		if s.Setup {
			marker = "+"
		}
		fmt.Fprintf(&b, "  %s %d. %s\n", marker, i+1, s.Label)
	}
	return b.String()
}

// describeClaimReport renders one line per mint.
func describeClaimReport(cfg config.Config, report *stake.ClaimReport) string {
	if len(report.Claims) == 0 {
		return "No stake accounts found.\n"
	}
	var b strings.Builder
	for _, c := range report.Claims {
		line := fmt.Sprintf("%-12s %-10s %s", cfg.MintName(c.Mint), c.Outcome, rewards.FormatRewards(c.Rewards))
		switch c.Outcome {
		case stake.ClaimSkipped:
			line += fmt.Sprintf(" (below %s)", rewards.FormatRewards(report.Threshold))
		case stake.ClaimConfirmed:
			line += " " + c.Signature.String()
		case stake.ClaimFailed:
			line += " " + explainError(c.Err)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// describeResult summarizes a finished operation.
func describeResult(res *stake.Result) string {
	if res == nil {
		return ""
	}
	if res.NoOp {
		return fmt.Sprintf("Nothing to %s.", res.Kind)
	}
	out := fmt.Sprintf("%s confirmed", strings.ToUpper(res.Kind.String()[:1])+res.Kind.String()[1:])
	if res.Kind.CarriesAmount() || res.Amount > 0 {
		out += ": " + instruction.FormatBaseUnits(res.Amount, res.Decimals)
	}
	return out + "\n   Transaction Signature: " + res.Signature.String()
}
