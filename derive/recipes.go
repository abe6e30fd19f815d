package derive

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ore-boost-cli/config"
)

var (
	ManagedProofSeed         = []byte("managed-proof-account")
	DelegatedBoostSeed       = []byte("v2-delegated-boost")
	LegacyDelegatedBoostSeed = []byte("delegated-boost")
	BoostSeed                = []byte("boost")
	StakeSeed                = []byte("stake")
)

// ErrBoostProgramUnset is returned by direct-form recipes when no current
// boost program is configured.
var ErrBoostProgramUnset = errors.New("current boost program is not configured")

// Deriver applies the named seed recipes of one deployment.
type Deriver struct {
	programs config.Programs
}

func New(programs config.Programs) *Deriver {
	return &Deriver{programs: programs}
}

func (d *Deriver) Programs() config.Programs {
	return d.programs
}

// ManagedProof is the miner's pooled proof account under the delegation program.
func (d *Deriver) ManagedProof(miner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(d.programs.Delegation, ManagedProofSeed, miner[:])
}

// DelegatedBoost is the staker's current delegated position record.
func (d *Deriver) DelegatedBoost(staker, mint, managedProof solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(d.programs.Delegation, DelegatedBoostSeed, staker[:], mint[:], managedProof[:])
}

// LegacyDelegatedBoost is the pre-migration position record.
func (d *Deriver) LegacyDelegatedBoost(staker, mint, managedProof solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(d.programs.Delegation, LegacyDelegatedBoostSeed, staker[:], mint[:], managedProof[:])
}

// Boost is the per-mint boost account under the given boost program.
func (d *Deriver) Boost(boostProgram, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(boostProgram, BoostSeed, mint[:])
}

// DelegatedStake is the managed proof's stake record under the deprecated
// boost program.
func (d *Deriver) DelegatedStake(managedProof, boost solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(d.programs.LegacyBoost, StakeSeed, managedProof[:], boost[:])
}

// DirectStake is the staker's own stake record under the current boost program.
func (d *Deriver) DirectStake(staker, boost solana.PublicKey) (solana.PublicKey, uint8, error) {
	if d.programs.Boost.IsZero() {
		return solana.PublicKey{}, 0, ErrBoostProgramUnset
	}
	return FindProgramAddress(d.programs.Boost, StakeSeed, staker[:], boost[:])
}

// TokenAccount is the associated token address of owner for mint.
func (d *Deriver) TokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}

// DelegatedAddresses is every account a delegation-program operation touches.
type DelegatedAddresses struct {
	Staker               solana.PublicKey
	Miner                solana.PublicKey
	Mint                 solana.PublicKey
	ManagedProof         solana.PublicKey
	ManagedProofTokens   solana.PublicKey
	DelegatedBoost       solana.PublicKey
	LegacyDelegatedBoost solana.PublicKey
	Boost                solana.PublicKey
	BoostTokens          solana.PublicKey
	Stake                solana.PublicKey
	StakerTokens         solana.PublicKey
	BoostProgram         solana.PublicKey
}

// Delegated resolves the delegation-program address set for staker and mint.
func (d *Deriver) Delegated(staker, mint solana.PublicKey) (*DelegatedAddresses, error) {
	a := &DelegatedAddresses{
		Staker:       staker,
		Miner:        d.programs.Miner,
		Mint:         mint,
		BoostProgram: d.programs.LegacyBoost,
	}

	var err error
	if a.ManagedProof, _, err = d.ManagedProof(a.Miner); err != nil {
		return nil, fmt.Errorf("failed to derive managed proof: %w", err)
	}
	if a.DelegatedBoost, _, err = d.DelegatedBoost(staker, mint, a.ManagedProof); err != nil {
		return nil, fmt.Errorf("failed to derive delegated boost: %w", err)
	}
	if a.LegacyDelegatedBoost, _, err = d.LegacyDelegatedBoost(staker, mint, a.ManagedProof); err != nil {
		return nil, fmt.Errorf("failed to derive legacy delegated boost: %w", err)
	}
	if a.Boost, _, err = d.Boost(a.BoostProgram, mint); err != nil {
		return nil, fmt.Errorf("failed to derive boost: %w", err)
	}
	if a.Stake, _, err = d.DelegatedStake(a.ManagedProof, a.Boost); err != nil {
		return nil, fmt.Errorf("failed to derive stake: %w", err)
	}
	if a.ManagedProofTokens, err = d.TokenAccount(a.ManagedProof, mint); err != nil {
		return nil, fmt.Errorf("failed to derive managed proof token account: %w", err)
	}
	if a.StakerTokens, err = d.TokenAccount(staker, mint); err != nil {
		return nil, fmt.Errorf("failed to derive staker token account: %w", err)
	}
	if a.BoostTokens, err = d.TokenAccount(a.Boost, mint); err != nil {
		return nil, fmt.Errorf("failed to derive boost token account: %w", err)
	}
	return a, nil
}

// DirectAddresses is every account a current boost program operation touches.
type DirectAddresses struct {
	Staker       solana.PublicKey
	Mint         solana.PublicKey
	Boost        solana.PublicKey
	BoostTokens  solana.PublicKey
	Stake        solana.PublicKey
	StakerTokens solana.PublicKey
	BoostProgram solana.PublicKey
}

// Direct resolves the current boost program address set for staker and mint.
func (d *Deriver) Direct(staker, mint solana.PublicKey) (*DirectAddresses, error) {
	if d.programs.Boost.IsZero() {
		return nil, ErrBoostProgramUnset
	}
	a := &DirectAddresses{
		Staker:       staker,
		Mint:         mint,
		BoostProgram: d.programs.Boost,
	}

	var err error
	if a.Boost, _, err = d.Boost(a.BoostProgram, mint); err != nil {
		return nil, fmt.Errorf("failed to derive boost: %w", err)
	}
	if a.Stake, _, err = d.DirectStake(staker, a.Boost); err != nil {
		return nil, fmt.Errorf("failed to derive stake: %w", err)
	}
	if a.BoostTokens, err = d.TokenAccount(a.Boost, mint); err != nil {
		return nil, fmt.Errorf("failed to derive boost token account: %w", err)
	}
	if a.StakerTokens, err = d.TokenAccount(staker, mint); err != nil {
		return nil, fmt.Errorf("failed to derive staker token account: %w", err)
	}
	return a, nil
}
