package api

import (
	"github.com/gagliardetto/solana-go"

	"ore-boost-cli/derive"
	"ore-boost-cli/instruction"
)

// DerivedAccounts names every account an operation of version touches for
// staker and mint.
func DerivedAccounts(d *derive.Deriver, version instruction.ProgramVersion, staker, mint solana.PublicKey) (map[string]solana.PublicKey, error) {
	if version.Delegated() {
		a, err := d.Delegated(staker, mint)
		if err != nil {
			return nil, err
		}
		return map[string]solana.PublicKey{
			"miner":                a.Miner,
			"managedProof":         a.ManagedProof,
			"managedProofTokens":   a.ManagedProofTokens,
			"delegatedBoost":       a.DelegatedBoost,
			"legacyDelegatedBoost": a.LegacyDelegatedBoost,
			"boost":                a.Boost,
			"boostTokens":          a.BoostTokens,
			"stake":                a.Stake,
			"stakerTokens":         a.StakerTokens,
			"boostProgram":         a.BoostProgram,
		}, nil
	}

	a, err := d.Direct(staker, mint)
	if err != nil {
		return nil, err
	}
	return map[string]solana.PublicKey{
		"boost":        a.Boost,
		"boostTokens":  a.BoostTokens,
		"stake":        a.Stake,
		"stakerTokens": a.StakerTokens,
		"boostProgram": a.BoostProgram,
	}, nil
}
