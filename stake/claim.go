package stake

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"ore-boost-cli/instruction"
	"ore-boost-cli/metrics"
	"ore-boost-cli/rewards"
)

// maxConcurrentClaims bounds the per-mint claims in flight.
const maxConcurrentClaims = 4

type ClaimOutcome int

const (
	// ClaimSkipped means the rewards were below the claim threshold.
	ClaimSkipped ClaimOutcome = iota
	// ClaimConfirmed means an on-chain claim transaction was confirmed.
	ClaimConfirmed
	// ClaimQueued means the rewards service accepted a claim request.
	ClaimQueued
	ClaimFailed
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimSkipped:
		return "skipped"
	case ClaimConfirmed:
		return "confirmed"
	case ClaimQueued:
		return "queued"
	case ClaimFailed:
		return "failed"
	}
	return fmt.Sprintf("ClaimOutcome(%d)", int(o))
}

func (o ClaimOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// MintClaim is the outcome of claiming one mint's rewards.
type MintClaim struct {
	Mint      solana.PublicKey
	Rewards   uint64
	Outcome   ClaimOutcome
	Signature solana.Signature
	Err       error
}

// ClaimReport aggregates the per-mint outcomes of a claim, in the order the
// rewards service listed the mints.
type ClaimReport struct {
	Staker    solana.PublicKey
	Threshold uint64
	Claims    []MintClaim
}

// Count returns the number of claims with outcome o.
func (r *ClaimReport) Count(o ClaimOutcome) int {
	n := 0
	for _, c := range r.Claims {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the per-mint failures, or returns nil when none failed.
func (r *ClaimReport) Err() error {
	var errs []error
	for _, c := range r.Claims {
		if c.Outcome == ClaimFailed {
			errs = append(errs, fmt.Errorf("%s: %w", c.Mint, c.Err))
		}
	}
	return errors.Join(errs...)
}

var metricClaims = metrics.LazyLoadCounterVec("claims_total", []string{"outcome"})

// Claim claims the staker's rewards one mint at a time. Mints below the
// configured threshold are skipped. Versions that define an on-chain claim
// get a transaction per mint, the others queue the claim with the rewards
// service. A failing mint never stops the others, so the returned error is
// only set when the mints could not be listed.
func (s *Service) Claim(ctx context.Context, staker solana.PublicKey, version instruction.ProgramVersion) (*ClaimReport, error) {
	if staker.IsZero() {
		return nil, &OperationError{Kind: Validation, Op: instruction.Claim, State: Validating, Err: ErrMissingStaker}
	}

	accounts, err := s.rewards.StakeAccounts(ctx, staker)
	if err != nil {
		return nil, &OperationError{Kind: RewardsAPI, Op: instruction.Claim, State: Validating, Err: err}
	}

	report := &ClaimReport{
		Staker:    staker,
		Threshold: s.cfg.ClaimMinRewards,
		Claims:    make([]MintClaim, len(accounts)),
	}
	onChain := s.encoder.Supports(instruction.Claim, version)

	var g errgroup.Group
	g.SetLimit(maxConcurrentClaims)
	for i, acct := range accounts {
		amount := uint64(acct.RewardsBalance)
		report.Claims[i] = MintClaim{Mint: acct.Mint, Rewards: amount}
		if amount == 0 || amount < s.cfg.ClaimMinRewards {
			klog.V(2).Infof("skipping claim of %s: %s rewards below threshold", acct.Mint, rewards.FormatRewards(amount))
			continue
		}

		g.Go(func() error {
			claim := &report.Claims[i]
			if onChain {
				s.claimOnChain(ctx, staker, version, claim)
			} else {
				s.queueClaim(ctx, staker, claim)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range report.Claims {
		metricClaims().AddWithLabel(1, map[string]string{"outcome": c.Outcome.String()})
	}
	return report, nil
}

func (s *Service) claimOnChain(ctx context.Context, staker solana.PublicKey, version instruction.ProgramVersion, claim *MintClaim) {
	res, err := s.Perform(ctx, Operation{
		Kind:      instruction.Claim,
		Version:   version,
		Staker:    staker,
		Mint:      claim.Mint,
		BaseUnits: claim.Rewards,
	})
	if res != nil {
		claim.Signature = res.Signature
	}
	if err != nil {
		claim.Outcome, claim.Err = ClaimFailed, err
		return
	}
	claim.Outcome = ClaimConfirmed
}

func (s *Service) queueClaim(ctx context.Context, staker solana.PublicKey, claim *MintClaim) {
	if err := s.rewards.QueueClaim(ctx, staker, claim.Mint, claim.Rewards); err != nil {
		claim.Outcome = ClaimFailed
		claim.Err = &OperationError{Kind: RewardsAPI, Op: instruction.Claim, State: Submitting, Err: err}
		return
	}
	claim.Outcome = ClaimQueued
}
