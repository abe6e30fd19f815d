// Package stake runs staking operations end to end: validation, address
// derivation, account resolution, encoding, submission and confirmation.
package stake

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"

	"ore-boost-cli/config"
	"ore-boost-cli/instruction"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/txbuilder"
)

// Ledger is the subset of ledger reads the service needs beyond the builder.
type Ledger interface {
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (ore_protocol.TokenAmount, error)
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Submitter signs, sends and confirms transactions.
type Submitter interface {
	Send(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// Rewards is the off-chain rewards accounting service.
type Rewards interface {
	StakeAccounts(ctx context.Context, staker solana.PublicKey) ([]rewards.StakeAccount, error)
	QueueClaim(ctx context.Context, staker, mint solana.PublicKey, amount uint64) error
	Staked(ctx context.Context, staker, mint solana.PublicKey, decimals uint8) (uint64, error)
	LegacyStaked(ctx context.Context, staker, mint solana.PublicKey, decimals uint8) (uint64, error)
}

// Operation is one user request. Amount is a human decimal string; when it
// is empty BaseUnits is used as is.
type Operation struct {
	Kind      instruction.OperationKind
	Version   instruction.ProgramVersion
	Staker    solana.PublicKey
	Payer     solana.PublicKey
	Mint      solana.PublicKey
	Amount    string
	BaseUnits uint64
}

// Result describes a finished operation. Signature is zero for no-ops.
type Result struct {
	Kind      instruction.OperationKind
	Version   instruction.ProgramVersion
	Mint      solana.PublicKey
	Signature solana.Signature
	Amount    uint64
	Decimals  uint8
	NoOp      bool
	Steps     []txbuilder.Step
}

type Service struct {
	cfg       config.Config
	builder   *txbuilder.Builder
	encoder   *instruction.Encoder
	ledger    Ledger
	submitter Submitter
	rewards   Rewards
	observer  Observer
}

func New(cfg config.Config, builder *txbuilder.Builder, encoder *instruction.Encoder, ledger Ledger, submitter Submitter, rewards Rewards) *Service {
	return &Service{
		cfg:       cfg.Clone(),
		builder:   builder,
		encoder:   encoder,
		ledger:    ledger,
		submitter: submitter,
		rewards:   rewards,
	}
}

// SetObserver installs o to receive every state transition.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

func (s *Service) newRun(kind instruction.OperationKind, version instruction.ProgramVersion) *run {
	return &run{op: kind, version: version, observer: s.observer}
}

// Perform runs op through the full state machine. Nothing is retried: a
// failure returns an *OperationError and the caller starts over. When the
// failure happens after sending, the returned Result still carries the
// signature.
func (s *Service) Perform(ctx context.Context, op Operation) (*Result, error) {
	if op.Kind == instruction.Migrate {
		return s.Migrate(ctx, op)
	}

	r := s.newRun(op.Kind, op.Version)
	r.to(Validating)
	spec, decimals, err := s.validate(ctx, op)
	if err != nil {
		return nil, r.fail(err)
	}

	res, err := s.execute(ctx, r, spec)
	if res != nil {
		res.Amount = spec.Amount
		res.Decimals = decimals
	}
	return res, err
}

// Migrate moves the legacy delegated stake of op.Mint to the current record.
// Nothing is sent when the legacy record holds no stake.
func (s *Service) Migrate(ctx context.Context, op Operation) (*Result, error) {
	op.Kind = instruction.Migrate
	r := s.newRun(instruction.Migrate, op.Version)
	r.to(Validating)
	if err := s.checkOperation(op); err != nil {
		return nil, r.fail(err)
	}
	decimals := s.mintDecimals(ctx, op.Mint)

	legacy, err := s.rewards.LegacyStaked(ctx, op.Staker, op.Mint, decimals)
	if err != nil {
		return nil, r.fail(&OperationError{Kind: RewardsAPI, Op: instruction.Migrate, State: r.state, Err: err})
	}
	if legacy == 0 {
		klog.V(2).Infof("no legacy stake of %s for %s, skipping migration", op.Mint, op.Staker)
		r.done(true)
		return &Result{Kind: instruction.Migrate, Version: op.Version, Mint: op.Mint, Decimals: decimals, NoOp: true}, nil
	}

	res, err := s.execute(ctx, r, s.spec(op, 0))
	if res != nil {
		res.Amount = legacy
		res.Decimals = decimals
	}
	return res, err
}

// MigrateAndStake migrates any legacy stake of op.Mint and then stakes
// op.Amount. With AtomicMigrateStake both happen in one transaction,
// otherwise the migration is confirmed first. Results are in execution
// order.
func (s *Service) MigrateAndStake(ctx context.Context, op Operation) ([]*Result, error) {
	op.Kind = instruction.Stake
	if !s.cfg.AtomicMigrateStake {
		migrated, err := s.Migrate(ctx, op)
		if err != nil {
			return resultList(migrated), err
		}
		staked, err := s.Perform(ctx, op)
		return append(resultList(migrated), resultList(staked)...), err
	}

	r := s.newRun(instruction.Stake, op.Version)
	r.to(Validating)
	stakeSpec, decimals, err := s.validate(ctx, op)
	if err != nil {
		return nil, r.fail(err)
	}
	if !s.encoder.Supports(instruction.Migrate, op.Version) {
		return nil, r.fail(&instruction.UnsupportedOperationError{Kind: instruction.Migrate, Version: op.Version})
	}

	legacy, err := s.rewards.LegacyStaked(ctx, op.Staker, op.Mint, decimals)
	if err != nil {
		return nil, r.fail(&OperationError{Kind: RewardsAPI, Op: instruction.Stake, State: r.state, Err: err})
	}
	specs := []txbuilder.OperationSpec{stakeSpec}
	if legacy > 0 {
		migrate := op
		migrate.Kind = instruction.Migrate
		specs = append([]txbuilder.OperationSpec{s.spec(migrate, 0)}, specs...)
	}

	res, err := s.execute(ctx, r, specs...)
	if res != nil {
		res.Amount = stakeSpec.Amount
		res.Decimals = decimals
	}
	return resultList(res), err
}

// UnstakeAll withdraws the whole staked balance of op.Mint less the
// configured reserve. The balance comes from the rewards service, which only
// tracks delegated stake, so Direct is refused.
func (s *Service) UnstakeAll(ctx context.Context, op Operation) (*Result, error) {
	op.Kind = instruction.Unstake
	r := s.newRun(instruction.Unstake, op.Version)
	r.to(Validating)
	if err := s.checkOperation(op); err != nil {
		return nil, r.fail(err)
	}
	if !op.Version.Delegated() {
		return nil, r.fail(ErrUnstakeAllDirect)
	}
	decimals := s.mintDecimals(ctx, op.Mint)

	staked := s.rewards.Staked
	if op.Version == instruction.V1 {
		staked = s.rewards.LegacyStaked
	}
	balance, err := staked(ctx, op.Staker, op.Mint, decimals)
	if err != nil {
		return nil, r.fail(&OperationError{Kind: RewardsAPI, Op: instruction.Unstake, State: r.state, Err: err})
	}
	amount := ReserveForRentExemption(balance, s.cfg.UnstakeReserve)
	if amount == 0 {
		klog.V(2).Infof("nothing to unstake: %d staked, %d reserved", balance, s.cfg.UnstakeReserve)
		r.done(true)
		return &Result{Kind: instruction.Unstake, Version: op.Version, Mint: op.Mint, Decimals: decimals, NoOp: true}, nil
	}

	res, err := s.execute(ctx, r, s.spec(op, amount))
	if res != nil {
		res.Amount = amount
		res.Decimals = decimals
	}
	return res, err
}

// ReserveForRentExemption is the full-unstake policy: it keeps reserve base
// units staked and never goes below zero.
func ReserveForRentExemption(amount, reserve uint64) uint64 {
	if amount <= reserve {
		return 0
	}
	return amount - reserve
}

// checkOperation runs the checks that need no network access.
func (s *Service) checkOperation(op Operation) error {
	if op.Staker.IsZero() {
		return ErrMissingStaker
	}
	if op.Mint.IsZero() {
		return ErrMissingMint
	}
	if !s.encoder.Supports(op.Kind, op.Version) {
		return &instruction.UnsupportedOperationError{Kind: op.Kind, Version: op.Version}
	}
	return nil
}

func (s *Service) validate(ctx context.Context, op Operation) (txbuilder.OperationSpec, uint8, error) {
	if err := s.checkOperation(op); err != nil {
		return txbuilder.OperationSpec{}, 0, err
	}
	if !op.Kind.CarriesAmount() {
		if op.Amount != "" || op.BaseUnits != 0 {
			return txbuilder.OperationSpec{}, 0, instruction.ErrUnexpectedAmount
		}
		return s.spec(op, 0), 0, nil
	}

	decimals := s.mintDecimals(ctx, op.Mint)
	amount := op.BaseUnits
	if op.Amount != "" {
		var err error
		if amount, err = instruction.ToBaseUnits(op.Amount, decimals); err != nil {
			return txbuilder.OperationSpec{}, 0, err
		}
	}
	if amount == 0 {
		return txbuilder.OperationSpec{}, 0, &instruction.InvalidAmountError{Input: op.Amount, Reason: "amount must be positive"}
	}
	return s.spec(op, amount), decimals, nil
}

func (s *Service) spec(op Operation, amount uint64) txbuilder.OperationSpec {
	return txbuilder.OperationSpec{
		Kind:    op.Kind,
		Version: op.Version,
		Staker:  op.Staker,
		Payer:   op.Payer,
		Mint:    op.Mint,
		Amount:  amount,
	}
}

// mintDecimals reads the mint's decimals, falling back to the configured
// value when the lookup fails.
func (s *Service) mintDecimals(ctx context.Context, mint solana.PublicKey) uint8 {
	decimals, err := s.ledger.GetMintDecimals(ctx, mint)
	if err != nil {
		klog.Warningf("using %d decimals for %s: %v", s.cfg.DecimalsFallback, mint, err)
		return s.cfg.DecimalsFallback
	}
	return decimals
}

// execute runs Deriving through Done for specs, which share one transaction.
func (s *Service) execute(ctx context.Context, r *run, specs ...txbuilder.OperationSpec) (*Result, error) {
	r.to(Deriving)
	plans, err := s.builder.Derive(specs...)
	if err != nil {
		return nil, r.fail(err)
	}

	r.to(Resolving)
	resolution, err := s.builder.Resolve(ctx, plans)
	if err != nil {
		return nil, r.fail(err)
	}

	r.to(Encoding)
	tx, err := s.builder.Encode(plans, resolution)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := s.checkFunds(ctx, tx.Payer, specs); err != nil {
		return nil, r.fail(err)
	}

	last := specs[len(specs)-1]
	res := &Result{Kind: r.op, Version: last.Version, Mint: last.Mint, Steps: tx.Steps}

	r.to(Submitting)
	klog.V(2).Infof("sending %s with %d instructions", r.op, len(tx.Instructions))
	sig, err := s.submitter.Send(ctx, tx.Instructions)
	if err != nil {
		return nil, r.fail(err)
	}
	res.Signature = sig
	r.sentAt = time.Now()

	r.to(Confirming)
	if err := s.submitter.Confirm(ctx, sig); err != nil {
		return res, r.fail(err)
	}
	metricConfirmLatency().ObserveWithLabels(time.Since(r.sentAt).Milliseconds(), map[string]string{"kind": r.op.String()})

	r.done(false)
	return res, nil
}

// checkFunds compares the payer's native balance with the fee floor and the
// staker's token balance with every amount staked in the transaction.
func (s *Service) checkFunds(ctx context.Context, payer solana.PublicKey, specs []txbuilder.OperationSpec) error {
	if s.cfg.FeeFloorLamports > 0 {
		lamports, err := s.ledger.GetBalance(ctx, payer)
		if err != nil {
			return err
		}
		if lamports < s.cfg.FeeFloorLamports {
			return &ore_protocol.InsufficientFundsError{
				Resource:  ore_protocol.NativeFunds,
				Required:  s.cfg.FeeFloorLamports,
				Available: lamports,
			}
		}
	}

	type holding struct{ staker, mint solana.PublicKey }
	required := make(map[holding]uint64)
	var order []holding
	for _, spec := range specs {
		if spec.Kind != instruction.Stake {
			continue
		}
		h := holding{spec.Staker, spec.Mint}
		if _, ok := required[h]; !ok {
			order = append(order, h)
		}
		required[h] += spec.Amount
	}
	for _, h := range order {
		balance, err := s.ledger.GetTokenBalance(ctx, h.staker, h.mint)
		if err != nil {
			return err
		}
		if balance.Amount < required[h] {
			return &ore_protocol.InsufficientFundsError{
				Resource:  ore_protocol.TokenFunds,
				Mint:      h.mint,
				Required:  required[h],
				Available: balance.Amount,
			}
		}
	}
	return nil
}

func resultList(res *Result) []*Result {
	if res == nil {
		return nil
	}
	return []*Result{res}
}

// IsTimeout reports whether err leaves the outcome of a sent transaction
// unknown.
func IsTimeout(err error) bool {
	var timeout *ore_protocol.ConfirmationTimeoutError
	return errors.As(err, &timeout) || Classify(err) == ConfirmationTimeout
}
