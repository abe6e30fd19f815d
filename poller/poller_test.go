package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ore-boost-cli/config"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
)

type fakeLedger struct {
	mu       sync.Mutex
	lamports uint64
	tokens   map[solana.PublicKey]uint64
	err      error
	calls    atomic.Int32
}

func (f *fakeLedger) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lamports, f.err
}

func (f *fakeLedger) GetTokenBalance(_ context.Context, _, mint solana.PublicKey) (ore_protocol.TokenAmount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ore_protocol.TokenAmount{Amount: f.tokens[mint], Decimals: 11}, f.err
}

type fakeRewards struct {
	accounts []rewards.StakeAccount
	err      error
}

func (f *fakeRewards) StakeAccounts(context.Context, solana.PublicKey) ([]rewards.StakeAccount, error) {
	return f.accounts, f.err
}

func newPoller(ledger *fakeLedger, api Rewards) *Poller {
	cfg := config.Default()
	p := New(cfg, solana.NewWallet().PublicKey(), ledger, api)
	p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPollBalances(t *testing.T) {
	ore := solana.MustPublicKeyFromBase58(config.OreMintAddress)
	ledger := &fakeLedger{lamports: 42, tokens: map[solana.PublicKey]uint64{ore: 7}}
	p := newPoller(ledger, nil)

	require.NoError(t, p.PollBalances(context.Background()))

	snap := p.Snapshot()
	assert.Equal(t, uint64(42), snap.Lamports)
	require.Len(t, snap.Tokens, len(config.Default().Mints))
	assert.Equal(t, "ORE", snap.Tokens[0].Name)
	assert.Equal(t, uint64(7), snap.Tokens[0].Amount)
	assert.Equal(t, uint64(0), snap.Tokens[1].Amount)
	assert.Equal(t, p.now(), snap.BalancesAt)
	assert.Empty(t, snap.Errors)
}

func TestPollFailureKeepsLastGoodValues(t *testing.T) {
	ledger := &fakeLedger{lamports: 42}
	p := newPoller(ledger, nil)
	require.NoError(t, p.PollBalances(context.Background()))

	ledger.mu.Lock()
	ledger.lamports, ledger.err = 1, errors.New("node unavailable")
	ledger.mu.Unlock()
	require.Error(t, p.PollBalances(context.Background()))

	snap := p.Snapshot()
	assert.Equal(t, uint64(42), snap.Lamports)
	assert.Contains(t, snap.Errors[sourceBalances], "node unavailable")

	ledger.mu.Lock()
	ledger.err = nil
	ledger.mu.Unlock()
	require.NoError(t, p.PollBalances(context.Background()))
	assert.Empty(t, p.Snapshot().Errors)
}

func TestPollRewards(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58(config.OreMintAddress)
	api := &fakeRewards{accounts: []rewards.StakeAccount{{Mint: mint, StakedBalance: 10, RewardsBalance: 3}}}
	p := newPoller(&fakeLedger{}, api)

	require.NoError(t, p.PollRewards(context.Background()))
	snap := p.Snapshot()
	require.Len(t, snap.StakeAccounts, 1)
	assert.Equal(t, rewards.BaseUnits(3), snap.StakeAccounts[0].RewardsBalance)

	api.err = errors.New("502")
	require.Error(t, p.PollRewards(context.Background()))
	snap = p.Snapshot()
	assert.Len(t, snap.StakeAccounts, 1)
	assert.Equal(t, "502", snap.Errors[sourceRewards])
}

func TestSnapshotIsACopy(t *testing.T) {
	p := newPoller(&fakeLedger{}, nil)
	require.NoError(t, p.PollBalances(context.Background()))

	snap := p.Snapshot()
	snap.Tokens[0].Amount = 99
	assert.Equal(t, uint64(0), p.Snapshot().Tokens[0].Amount)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	ledger := &fakeLedger{}
	p := newPoller(ledger, &fakeRewards{})
	p.balances = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return ledger.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestWindowAt(t *testing.T) {
	w := config.Window{Cycle: time.Hour, Active: 5 * time.Minute}
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	open := WindowAt(w, base.Add(2*time.Minute))
	assert.True(t, open.Open)
	assert.Equal(t, 3*time.Minute, open.ClosesIn)

	closed := WindowAt(w, base.Add(20*time.Minute))
	assert.False(t, closed.Open)
	assert.Equal(t, 40*time.Minute, closed.OpensIn)

	edge := WindowAt(w, base.Add(5*time.Minute))
	assert.False(t, edge.Open)
	assert.Equal(t, 55*time.Minute, edge.OpensIn)

	assert.True(t, WindowAt(config.Window{Cycle: time.Minute, Active: time.Hour}, base).Open)
	assert.False(t, WindowAt(config.Window{}, base).Open)
}

func TestNew_KeepsItsOwnMints(t *testing.T) {
	cfg := config.Default()
	ledger := &fakeLedger{tokens: map[solana.PublicKey]uint64{}}
	p := New(cfg, solana.NewWallet().PublicKey(), ledger, nil)
	cfg.Mints[0].Name = "renamed"

	require.NoError(t, p.PollBalances(context.Background()))
	assert.Equal(t, "ORE", p.Snapshot().Tokens[0].Name)
}
