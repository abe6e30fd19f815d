package derive

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ore-boost-cli/config"
)

// The TestFindProgramAddress_MatchesSolanaGo function checks that random seed
// sets derive the same address and bump as solana-go's implementation, and
// that repeated calls are stable.
func TestFindProgramAddress_MatchesSolanaGo(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 64; i++ {
		programID := solana.NewWallet().PublicKey()
		n := 1 + rng.Intn(MaxSeeds-1)
		seeds := make([][]byte, n)
		for j := range seeds {
			seed := make([]byte, rng.Intn(MaxSeedLen+1))
			rng.Read(seed)
			seeds[j] = seed
		}

		addr, bump, err := FindProgramAddress(programID, seeds...)
		require.NoError(t, err)

		again, againBump, err := FindProgramAddress(programID, seeds...)
		require.NoError(t, err)
		assert.Equal(t, addr, again)
		assert.Equal(t, bump, againBump)

		want, wantBump, err := solana.FindProgramAddress(seeds, programID)
		require.NoError(t, err)
		assert.Equal(t, want, addr)
		assert.Equal(t, wantBump, bump)
		assert.False(t, IsOnCurve(addr[:]))
	}
}

func TestFindProgramAddress_DoesNotMutateSeeds(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	seeds := [][]byte{[]byte("boost"), bytes.Repeat([]byte{1}, 32)}

	_, _, err := FindProgramAddress(programID, seeds...)
	require.NoError(t, err)
	assert.Len(t, seeds, 2)
	assert.Equal(t, []byte("boost"), seeds[0])
}

func TestCheckSeeds(t *testing.T) {
	var target *InvalidSeedError

	err := CheckSeeds(nil)
	require.ErrorAs(t, err, &target)
	assert.Equal(t, -1, target.Index)

	err = CheckSeeds(make([][]byte, MaxSeeds))
	require.ErrorAs(t, err, &target)

	err = CheckSeeds([][]byte{[]byte("ok"), make([]byte, MaxSeedLen+1)})
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 1, target.Index)

	assert.NoError(t, CheckSeeds(make([][]byte, MaxSeeds-1)))
	assert.NoError(t, CheckSeeds([][]byte{make([]byte, MaxSeedLen)}))
}

func TestFindProgramAddress_RejectsInvalidSeeds(t *testing.T) {
	_, _, err := FindProgramAddress(solana.SystemProgramID)
	var target *InvalidSeedError
	assert.ErrorAs(t, err, &target)
}

func TestDeriver_RecipesMatchSeedLayout(t *testing.T) {
	cfg := config.Default()
	d := New(cfg.Programs)
	staker := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58(config.OreMintAddress)

	managed, _, err := d.ManagedProof(cfg.Programs.Miner)
	require.NoError(t, err)
	want, _, err := solana.FindProgramAddress([][]byte{[]byte("managed-proof-account"), cfg.Programs.Miner[:]}, cfg.Programs.Delegation)
	require.NoError(t, err)
	assert.Equal(t, want, managed)

	delegated, _, err := d.DelegatedBoost(staker, mint, managed)
	require.NoError(t, err)
	want, _, err = solana.FindProgramAddress([][]byte{[]byte("v2-delegated-boost"), staker[:], mint[:], managed[:]}, cfg.Programs.Delegation)
	require.NoError(t, err)
	assert.Equal(t, want, delegated)

	legacy, _, err := d.LegacyDelegatedBoost(staker, mint, managed)
	require.NoError(t, err)
	assert.NotEqual(t, delegated, legacy)

	boost, _, err := d.Boost(cfg.Programs.LegacyBoost, mint)
	require.NoError(t, err)
	want, _, err = solana.FindProgramAddress([][]byte{[]byte("boost"), mint[:]}, cfg.Programs.LegacyBoost)
	require.NoError(t, err)
	assert.Equal(t, want, boost)

	stake, _, err := d.DelegatedStake(managed, boost)
	require.NoError(t, err)
	want, _, err = solana.FindProgramAddress([][]byte{[]byte("stake"), managed[:], boost[:]}, cfg.Programs.LegacyBoost)
	require.NoError(t, err)
	assert.Equal(t, want, stake)
}

func TestDeriver_Delegated(t *testing.T) {
	cfg := config.Default()
	d := New(cfg.Programs)
	staker := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58(config.OreMintAddress)

	a, err := d.Delegated(staker, mint)
	require.NoError(t, err)

	ata, _, err := solana.FindAssociatedTokenAddress(staker, mint)
	require.NoError(t, err)
	assert.Equal(t, ata, a.StakerTokens)
	assert.Equal(t, cfg.Programs.LegacyBoost, a.BoostProgram)
	assert.Equal(t, cfg.Programs.Miner, a.Miner)

	b, err := d.Delegated(staker, mint)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriver_DirectNeedsBoostProgram(t *testing.T) {
	cfg := config.Default()
	staker := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58(config.OreMintAddress)

	_, err := New(cfg.Programs).Direct(staker, mint)
	assert.ErrorIs(t, err, ErrBoostProgramUnset)

	cfg.Programs.Boost = solana.NewWallet().PublicKey()
	a, err := New(cfg.Programs).Direct(staker, mint)
	require.NoError(t, err)

	want, _, err := solana.FindProgramAddress([][]byte{[]byte("stake"), staker[:], a.Boost[:]}, cfg.Programs.Boost)
	require.NoError(t, err)
	assert.Equal(t, want, a.Stake)
}
