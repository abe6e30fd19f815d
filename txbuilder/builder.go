// Package txbuilder assembles staking operations into ordered instruction
// lists, initializing the records they depend on when those are missing.
package txbuilder

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"k8s.io/klog/v2"

	"ore-boost-cli/config"
	"ore-boost-cli/derive"
	"ore-boost-cli/instruction"
)

// LedgerQuery is the account existence lookup the builder resolves against.
// Missing accounts are nil entries, never errors.
type LedgerQuery interface {
	GetMultipleAccountsInfo(ctx context.Context, addresses []solana.PublicKey) ([]*rpc.Account, error)
}

// OperationSpec describes one staking operation.
type OperationSpec struct {
	Kind    instruction.OperationKind
	Version instruction.ProgramVersion
	Staker  solana.PublicKey
	// Payer funds any record the operation opens. Zero means the staker.
	Payer  solana.PublicKey
	Mint   solana.PublicKey
	Amount uint64
}

func (s OperationSpec) payer() solana.PublicKey {
	if s.Payer.IsZero() {
		return s.Staker
	}
	return s.Payer
}

// Step labels one instruction of a built transaction.
type Step struct {
	Label string
	Kind  instruction.OperationKind
	Mint  solana.PublicKey
	// Setup marks instructions emitted only because an account was missing,
	// and compute budget instructions.
	Setup bool
}

// Transaction is an ordered instruction list ready for submission.
type Transaction struct {
	Payer        solana.PublicKey
	Instructions []solana.Instruction
	Steps        []Step
}

func (t *Transaction) add(ix solana.Instruction, step Step) {
	t.Instructions = append(t.Instructions, ix)
	t.Steps = append(t.Steps, step)
}

// Operations counts the non-setup instructions.
func (t *Transaction) Operations() int {
	n := 0
	for _, s := range t.Steps {
		if !s.Setup {
			n++
		}
	}
	return n
}

type conditional struct {
	account solana.PublicKey
	what    string
}

// Plan is an operation with every address it touches derived.
type Plan struct {
	Spec      OperationSpec
	Delegated *derive.DelegatedAddresses
	Direct    *derive.DirectAddresses

	// creates is the record the operation opens when missing.
	creates *conditional
	// requires must exist before the operation, or be created earlier in the
	// same transaction.
	requires []conditional
	// beneficiary is the staker token account that receives withdrawn or
	// claimed tokens. It is created when missing.
	beneficiary *conditional
}

// Accounts lists the conditional accounts of the plan.
func (p *Plan) Accounts() []solana.PublicKey {
	var out []solana.PublicKey
	if p.creates != nil {
		out = append(out, p.creates.account)
	}
	for _, r := range p.requires {
		out = append(out, r.account)
	}
	if p.beneficiary != nil {
		out = append(out, p.beneficiary.account)
	}
	return out
}

// Resolution records which conditional accounts exist.
type Resolution struct {
	exists map[solana.PublicKey]bool
}

func (r *Resolution) Exists(account solana.PublicKey) bool {
	return r.exists[account]
}

type Builder struct {
	deriver  *derive.Deriver
	encoder  *instruction.Encoder
	ledger   LedgerQuery
	programs config.Programs
	budget   config.ComputeBudget
}

func New(deriver *derive.Deriver, encoder *instruction.Encoder, ledger LedgerQuery, budget config.ComputeBudget) *Builder {
	return &Builder{
		deriver:  deriver,
		encoder:  encoder,
		ledger:   ledger,
		programs: deriver.Programs(),
		budget:   budget,
	}
}

// Build runs Derive, Resolve and Encode over specs.
func (b *Builder) Build(ctx context.Context, specs ...OperationSpec) (*Transaction, error) {
	plans, err := b.Derive(specs...)
	if err != nil {
		return nil, err
	}
	res, err := b.Resolve(ctx, plans)
	if err != nil {
		return nil, err
	}
	return b.Encode(plans, res)
}

// Derive computes the addresses of every spec. Operations the selected
// version does not define fail with *instruction.UnsupportedOperationError.
func (b *Builder) Derive(specs ...OperationSpec) ([]*Plan, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyTransaction
	}
	plans := make([]*Plan, 0, len(specs))
	for _, spec := range specs {
		p, err := b.derive(spec)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (b *Builder) derive(spec OperationSpec) (*Plan, error) {
	if !b.encoder.Supports(spec.Kind, spec.Version) {
		return nil, &instruction.UnsupportedOperationError{Kind: spec.Kind, Version: spec.Version}
	}
	if spec.Staker.IsZero() || spec.Mint.IsZero() {
		return nil, &DependencyUnresolvedError{Kind: spec.Kind, Mint: spec.Mint, Err: fmt.Errorf("staker and mint are required")}
	}

	p := &Plan{Spec: spec}
	if spec.Version.Delegated() {
		a, err := b.deriver.Delegated(spec.Staker, spec.Mint)
		if err != nil {
			return nil, &DependencyUnresolvedError{Kind: spec.Kind, Mint: spec.Mint, Err: err}
		}
		p.Delegated = a
		record := conditional{account: a.DelegatedBoost, what: "delegated boost record"}
		if spec.Version == instruction.V1 {
			record = conditional{account: a.LegacyDelegatedBoost, what: "legacy delegated boost record"}
		}

		switch spec.Kind {
		case instruction.Init, instruction.Stake:
			p.creates = &record
		case instruction.Unstake:
			p.requires = []conditional{record}
			p.beneficiary = &conditional{account: a.StakerTokens, what: "staker token account"}
		case instruction.Migrate:
			p.creates = &record
			p.requires = []conditional{{account: a.LegacyDelegatedBoost, what: "legacy delegated boost record"}}
		}
		return p, nil
	}

	a, err := b.deriver.Direct(spec.Staker, spec.Mint)
	if err != nil {
		return nil, &DependencyUnresolvedError{Kind: spec.Kind, Mint: spec.Mint, Err: err}
	}
	p.Direct = a
	record := conditional{account: a.Stake, what: "stake record"}
	switch spec.Kind {
	case instruction.Init, instruction.Stake:
		p.creates = &record
	case instruction.Unstake, instruction.Claim:
		p.requires = []conditional{record}
		p.beneficiary = &conditional{account: a.StakerTokens, what: "staker token account"}
	}
	return p, nil
}

// Resolve fetches the existence of every conditional account in one query.
// Query failures are returned unchanged.
func (b *Builder) Resolve(ctx context.Context, plans []*Plan) (*Resolution, error) {
	seen := make(map[solana.PublicKey]bool)
	var accounts []solana.PublicKey
	for _, p := range plans {
		for _, a := range p.Accounts() {
			if !seen[a] {
				seen[a] = true
				accounts = append(accounts, a)
			}
		}
	}

	res := &Resolution{exists: make(map[solana.PublicKey]bool, len(accounts))}
	if len(accounts) == 0 {
		return res, nil
	}
	infos, err := b.ledger.GetMultipleAccountsInfo(ctx, accounts)
	if err != nil {
		return nil, err
	}
	if len(infos) != len(accounts) {
		return nil, fmt.Errorf("ledger returned %d entries for %d accounts", len(infos), len(accounts))
	}
	for i, a := range accounts {
		res.exists[a] = infos[i] != nil
	}
	klog.V(4).Infof("resolved %d conditional accounts", len(accounts))
	return res, nil
}

// Encode emits the instructions of plans in order. A missing record is
// initialized once, directly before the first instruction that needs it.
func (b *Builder) Encode(plans []*Plan, res *Resolution) (*Transaction, error) {
	if len(plans) == 0 {
		return nil, ErrEmptyTransaction
	}
	tx := &Transaction{Payer: plans[0].Spec.payer()}
	created := make(map[solana.PublicKey]bool)
	exists := func(a solana.PublicKey) bool { return res.Exists(a) || created[a] }

	for _, p := range plans {
		spec := p.Spec
		for _, r := range p.requires {
			if !exists(r.account) {
				return nil, &MissingAccountError{Kind: spec.Kind, Version: spec.Version, Account: r.account, What: r.what}
			}
		}

		if p.creates != nil && !exists(p.creates.account) {
			ix, err := b.initInstruction(p)
			if err != nil {
				return nil, err
			}
			created[p.creates.account] = true
			tx.add(ix, Step{Label: "open " + p.creates.what, Kind: instruction.Init, Mint: spec.Mint, Setup: spec.Kind != instruction.Init})
		}

		if p.beneficiary != nil && !exists(p.beneficiary.account) {
			ix, err := associatedtokenaccount.NewCreateInstruction(spec.payer(), spec.Staker, spec.Mint).ValidateAndBuild()
			if err != nil {
				return nil, fmt.Errorf("failed to build token account creation: %w", err)
			}
			created[p.beneficiary.account] = true
			tx.add(ix, Step{Label: "create " + p.beneficiary.what, Kind: spec.Kind, Mint: spec.Mint, Setup: true})
		}

		if spec.Kind == instruction.Init {
			continue
		}
		ix, err := b.operationInstruction(p)
		if err != nil {
			return nil, err
		}
		tx.add(ix, Step{Label: spec.Kind.String(), Kind: spec.Kind, Mint: spec.Mint})
	}

	if tx.Operations() == 0 {
		return nil, ErrEmptyTransaction
	}
	if err := b.prependComputeBudget(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *Builder) initInstruction(p *Plan) (solana.Instruction, error) {
	spec := p.Spec
	if spec.Version.Delegated() {
		a := p.Delegated
		return b.encoder.NewDelegatedInitInstruction(spec.Version, b.programs.Delegation, instruction.DelegatedInitAccounts{
			Staker:         spec.Staker,
			Miner:          a.Miner,
			Payer:          spec.payer(),
			ManagedProof:   a.ManagedProof,
			DelegatedBoost: p.creates.account,
			Mint:           spec.Mint,
			Rent:           b.programs.Rent,
			SystemProgram:  b.programs.System,
		})
	}
	a := p.Direct
	return b.encoder.NewDirectOpenInstruction(a.BoostProgram, instruction.DirectOpenAccounts{
		Payer:         spec.payer(),
		Staker:        spec.Staker,
		Boost:         a.Boost,
		Mint:          spec.Mint,
		Stake:         a.Stake,
		SystemProgram: b.programs.System,
	})
}

func (b *Builder) operationInstruction(p *Plan) (solana.Instruction, error) {
	spec := p.Spec
	if !spec.Version.Delegated() {
		a := p.Direct
		return b.encoder.NewDirectTransferInstruction(spec.Kind, a.BoostProgram, instruction.DirectTransferAccounts{
			Staker:       spec.Staker,
			StakerTokens: a.StakerTokens,
			Boost:        a.Boost,
			BoostTokens:  a.BoostTokens,
			Mint:         spec.Mint,
			Stake:        a.Stake,
			TokenProgram: b.programs.Token,
		}, spec.Amount)
	}

	a := p.Delegated
	record := a.DelegatedBoost
	if spec.Version == instruction.V1 {
		record = a.LegacyDelegatedBoost
	}
	if spec.Kind == instruction.Migrate {
		return b.encoder.NewMigrateInstruction(spec.Version, b.programs.Delegation, instruction.MigrateAccounts{
			Staker:               spec.Staker,
			Miner:                a.Miner,
			ManagedProof:         a.ManagedProof,
			LegacyDelegatedBoost: a.LegacyDelegatedBoost,
			DelegatedBoost:       a.DelegatedBoost,
			Mint:                 spec.Mint,
		})
	}
	return b.encoder.NewDelegatedStakeInstruction(spec.Kind, spec.Version, b.programs.Delegation, instruction.DelegatedStakeAccounts{
		Staker:             spec.Staker,
		Miner:              a.Miner,
		ManagedProof:       a.ManagedProof,
		ManagedProofTokens: a.ManagedProofTokens,
		DelegatedBoost:     record,
		Boost:              a.Boost,
		Mint:               spec.Mint,
		StakerTokens:       a.StakerTokens,
		BoostTokens:        a.BoostTokens,
		Stake:              a.Stake,
		BoostProgram:       a.BoostProgram,
		TokenProgram:       b.programs.Token,
	}, spec.Amount)
}

func (b *Builder) prependComputeBudget(tx *Transaction) error {
	if !b.budget.Enabled() {
		return nil
	}
	var (
		ixs   []solana.Instruction
		steps []Step
	)
	if b.budget.UnitLimit > 0 {
		ix, err := computebudget.NewSetComputeUnitLimitInstruction(b.budget.UnitLimit).ValidateAndBuild()
		if err != nil {
			return fmt.Errorf("failed to build compute unit limit: %w", err)
		}
		ixs = append(ixs, ix)
		steps = append(steps, Step{Label: "set compute unit limit", Setup: true})
	}
	if b.budget.UnitPriceMicroLamports > 0 {
		ix, err := computebudget.NewSetComputeUnitPriceInstruction(b.budget.UnitPriceMicroLamports).ValidateAndBuild()
		if err != nil {
			return fmt.Errorf("failed to build compute unit price: %w", err)
		}
		ixs = append(ixs, ix)
		steps = append(steps, Step{Label: "set compute unit price", Setup: true})
	}
	tx.Instructions = append(ixs, tx.Instructions...)
	tx.Steps = append(steps, tx.Steps...)
	return nil
}
