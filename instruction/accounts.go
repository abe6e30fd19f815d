package instruction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DelegatedStakeAccounts are the accounts of a delegation program stake or
// unstake, in program order.
type DelegatedStakeAccounts struct {
	Staker             solana.PublicKey
	Miner              solana.PublicKey
	ManagedProof       solana.PublicKey
	ManagedProofTokens solana.PublicKey
	DelegatedBoost     solana.PublicKey
	Boost              solana.PublicKey
	Mint               solana.PublicKey
	StakerTokens       solana.PublicKey
	BoostTokens        solana.PublicKey
	Stake              solana.PublicKey
	BoostProgram       solana.PublicKey
	TokenProgram       solana.PublicKey
}

func (a DelegatedStakeAccounts) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Staker, true, true),
		solana.NewAccountMeta(a.Miner, false, false),
		solana.NewAccountMeta(a.ManagedProof, true, false),
		solana.NewAccountMeta(a.ManagedProofTokens, true, false),
		solana.NewAccountMeta(a.DelegatedBoost, true, false),
		solana.NewAccountMeta(a.Boost, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.StakerTokens, true, false),
		solana.NewAccountMeta(a.BoostTokens, true, false),
		solana.NewAccountMeta(a.Stake, true, false),
		solana.NewAccountMeta(a.BoostProgram, false, false),
		solana.NewAccountMeta(a.TokenProgram, false, false),
	}
}

// DelegatedInitAccounts open a delegated-boost record. The staker is not a
// signer; the payer funds the record.
type DelegatedInitAccounts struct {
	Staker         solana.PublicKey
	Miner          solana.PublicKey
	Payer          solana.PublicKey
	ManagedProof   solana.PublicKey
	DelegatedBoost solana.PublicKey
	Mint           solana.PublicKey
	Rent           solana.PublicKey
	SystemProgram  solana.PublicKey
}

func (a DelegatedInitAccounts) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Staker, true, false),
		solana.NewAccountMeta(a.Miner, true, false),
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.ManagedProof, true, false),
		solana.NewAccountMeta(a.DelegatedBoost, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.Rent, false, false),
		solana.NewAccountMeta(a.SystemProgram, false, false),
	}
}

// MigrateAccounts repoint a legacy delegated-boost record to its v2 address.
type MigrateAccounts struct {
	Staker               solana.PublicKey
	Miner                solana.PublicKey
	ManagedProof         solana.PublicKey
	LegacyDelegatedBoost solana.PublicKey
	DelegatedBoost       solana.PublicKey
	Mint                 solana.PublicKey
}

func (a MigrateAccounts) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Staker, true, true),
		solana.NewAccountMeta(a.Miner, false, false),
		solana.NewAccountMeta(a.ManagedProof, true, false),
		solana.NewAccountMeta(a.LegacyDelegatedBoost, true, false),
		solana.NewAccountMeta(a.DelegatedBoost, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
	}
}

// DirectOpenAccounts open a stake record under the current boost program.
type DirectOpenAccounts struct {
	Payer         solana.PublicKey
	Staker        solana.PublicKey
	Boost         solana.PublicKey
	Mint          solana.PublicKey
	Stake         solana.PublicKey
	SystemProgram solana.PublicKey
}

func (a DirectOpenAccounts) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.Staker, false, false),
		solana.NewAccountMeta(a.Boost, false, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.Stake, true, false),
		solana.NewAccountMeta(a.SystemProgram, false, false),
	}
}

// DirectTransferAccounts move tokens between the staker and a boost under the
// current boost program: deposit, withdraw and claim.
type DirectTransferAccounts struct {
	Staker       solana.PublicKey
	StakerTokens solana.PublicKey
	Boost        solana.PublicKey
	BoostTokens  solana.PublicKey
	Mint         solana.PublicKey
	Stake        solana.PublicKey
	TokenProgram solana.PublicKey
}

func (a DirectTransferAccounts) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Staker, true, true),
		solana.NewAccountMeta(a.StakerTokens, true, false),
		solana.NewAccountMeta(a.Boost, true, false),
		solana.NewAccountMeta(a.BoostTokens, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.Stake, true, false),
		solana.NewAccountMeta(a.TokenProgram, false, false),
	}
}

func (e *Encoder) build(programID solana.PublicKey, kind OperationKind, version ProgramVersion, metas solana.AccountMetaSlice, amount *uint64) (*solana.GenericInstruction, error) {
	payload, err := e.Encode(kind, version, amount)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, metas, payload.Data), nil
}

func requireDelegated(kind OperationKind, version ProgramVersion) error {
	if !version.Delegated() {
		return &UnsupportedOperationError{Kind: kind, Version: version}
	}
	return nil
}

// NewDelegatedInitInstruction opens the delegated-boost record of version.
func (e *Encoder) NewDelegatedInitInstruction(version ProgramVersion, programID solana.PublicKey, accounts DelegatedInitAccounts) (*solana.GenericInstruction, error) {
	if err := requireDelegated(Init, version); err != nil {
		return nil, err
	}
	return e.build(programID, Init, version, accounts.Metas(), nil)
}

// NewDelegatedStakeInstruction builds a delegation program stake or unstake.
func (e *Encoder) NewDelegatedStakeInstruction(kind OperationKind, version ProgramVersion, programID solana.PublicKey, accounts DelegatedStakeAccounts, amount uint64) (*solana.GenericInstruction, error) {
	if kind != Stake && kind != Unstake {
		return nil, fmt.Errorf("delegated stake instruction cannot encode %s", kind)
	}
	if err := requireDelegated(kind, version); err != nil {
		return nil, err
	}
	return e.build(programID, kind, version, accounts.Metas(), &amount)
}

func (e *Encoder) NewMigrateInstruction(version ProgramVersion, programID solana.PublicKey, accounts MigrateAccounts) (*solana.GenericInstruction, error) {
	if err := requireDelegated(Migrate, version); err != nil {
		return nil, err
	}
	return e.build(programID, Migrate, version, accounts.Metas(), nil)
}

func (e *Encoder) NewDirectOpenInstruction(programID solana.PublicKey, accounts DirectOpenAccounts) (*solana.GenericInstruction, error) {
	return e.build(programID, Init, Direct, accounts.Metas(), nil)
}

// NewDirectTransferInstruction builds a deposit (Stake), withdraw (Unstake)
// or Claim against the current boost program.
func (e *Encoder) NewDirectTransferInstruction(kind OperationKind, programID solana.PublicKey, accounts DirectTransferAccounts, amount uint64) (*solana.GenericInstruction, error) {
	if !kind.CarriesAmount() {
		return nil, fmt.Errorf("direct transfer instruction cannot encode %s", kind)
	}
	return e.build(programID, kind, Direct, accounts.Metas(), &amount)
}
