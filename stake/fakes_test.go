package stake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"ore-boost-cli/config"
	"ore-boost-cli/derive"
	"ore-boost-cli/instruction"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/txbuilder"
)

type fakeLedger struct {
	mu          sync.Mutex
	existing    map[solana.PublicKey]bool
	lamports    uint64
	tokens      map[solana.PublicKey]uint64
	decimals    uint8
	decimalsErr error
	queryErr    error
}

func (f *fakeLedger) GetMultipleAccountsInfo(_ context.Context, addrs []solana.PublicKey) ([]*rpc.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]*rpc.Account, len(addrs))
	for i, a := range addrs {
		if f.existing[a] {
			out[i] = &rpc.Account{Lamports: 1}
		}
	}
	return out, nil
}

func (f *fakeLedger) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.lamports, nil
}

func (f *fakeLedger) GetTokenBalance(_ context.Context, _, mint solana.PublicKey) (ore_protocol.TokenAmount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ore_protocol.TokenAmount{Amount: f.tokens[mint], Decimals: f.decimals}, nil
}

func (f *fakeLedger) GetMintDecimals(context.Context, solana.PublicKey) (uint8, error) {
	if f.decimalsErr != nil {
		return 0, f.decimalsErr
	}
	return f.decimals, nil
}

func (f *fakeLedger) exists(accounts ...solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range accounts {
		f.existing[a] = true
	}
}

type fakeSubmitter struct {
	mu         sync.Mutex
	sent       [][]solana.Instruction
	sendErr    error
	confirmErr error
}

func (f *fakeSubmitter) Send(_ context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, ixs)
	var sig solana.Signature
	sig[0] = byte(len(f.sent))
	return sig, nil
}

func (f *fakeSubmitter) Confirm(context.Context, solana.Signature) error {
	return f.confirmErr
}

func (f *fakeSubmitter) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRewards struct {
	mu          sync.Mutex
	accounts    []rewards.StakeAccount
	accountsErr error
	legacy      uint64
	staked      uint64
	stakedErr   error
	queueErr    map[solana.PublicKey]error
	queued      map[solana.PublicKey]uint64
}

func (f *fakeRewards) StakeAccounts(context.Context, solana.PublicKey) ([]rewards.StakeAccount, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeRewards) QueueClaim(_ context.Context, _, mint solana.PublicKey, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.queueErr[mint]; err != nil {
		return err
	}
	if f.queued == nil {
		f.queued = map[solana.PublicKey]uint64{}
	}
	f.queued[mint] = amount
	return nil
}

func (f *fakeRewards) Staked(context.Context, solana.PublicKey, solana.PublicKey, uint8) (uint64, error) {
	return f.staked, f.stakedErr
}

func (f *fakeRewards) LegacyStaked(context.Context, solana.PublicKey, solana.PublicKey, uint8) (uint64, error) {
	return f.legacy, f.stakedErr
}

type fixture struct {
	cfg       config.Config
	service   *Service
	ledger    *fakeLedger
	submitter *fakeSubmitter
	rewards   *fakeRewards
	deriver   *derive.Deriver
	staker    solana.PublicKey
	mint      solana.PublicKey

	mu          sync.Mutex
	transitions []Transition
}

func newFixture(t *testing.T, tweak func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Programs.Boost = solana.MustPublicKeyFromBase58("BoostzzkNfCA9D1qNuN5xZxB5ErbK4zQuBeTHGDpXT1")
	cfg.ConfirmTimeout = time.Second
	if tweak != nil {
		tweak(&cfg)
	}

	encoder, err := instruction.NewEncoder(nil)
	require.NoError(t, err)
	deriver := derive.New(cfg.Programs)
	ledger := &fakeLedger{
		existing: map[solana.PublicKey]bool{},
		lamports: 1_000_000_000,
		tokens:   map[solana.PublicKey]uint64{},
		decimals: 11,
	}
	submitter := &fakeSubmitter{}
	rw := &fakeRewards{}

	f := &fixture{
		cfg:       cfg,
		ledger:    ledger,
		submitter: submitter,
		rewards:   rw,
		deriver:   deriver,
		staker:    solana.NewWallet().PublicKey(),
		mint:      solana.MustPublicKeyFromBase58(config.OreMintAddress),
	}
	builder := txbuilder.New(deriver, encoder, ledger, cfg.ComputeBudget)
	f.service = New(cfg, builder, encoder, ledger, submitter, rw)
	f.service.SetObserver(func(tr Transition) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.transitions = append(f.transitions, tr)
	})
	return f
}

func (f *fixture) op(kind instruction.OperationKind, version instruction.ProgramVersion, amount string) Operation {
	return Operation{Kind: kind, Version: version, Staker: f.staker, Mint: f.mint, Amount: amount}
}

func (f *fixture) delegated(t *testing.T) *derive.DelegatedAddresses {
	t.Helper()
	a, err := f.deriver.Delegated(f.staker, f.mint)
	require.NoError(t, err)
	return a
}

func (f *fixture) direct(t *testing.T, mint solana.PublicKey) *derive.DirectAddresses {
	t.Helper()
	a, err := f.deriver.Direct(f.staker, mint)
	require.NoError(t, err)
	return a
}

func (f *fixture) states() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, 0, len(f.transitions)+1)
	if len(f.transitions) > 0 {
		out = append(out, f.transitions[0].From)
	}
	for _, tr := range f.transitions {
		out = append(out, tr.To)
	}
	return out
}

// discriminators returns the first data byte of each instruction of the
// n-th sent transaction, 0xff for instructions without data.
func (f *fixture) discriminators(t *testing.T, n int) []byte {
	t.Helper()
	f.submitter.mu.Lock()
	defer f.submitter.mu.Unlock()
	require.Greater(t, len(f.submitter.sent), n)
	var out []byte
	for _, ix := range f.submitter.sent[n] {
		data, err := ix.Data()
		require.NoError(t, err)
		if len(data) == 0 {
			out = append(out, 0xff)
			continue
		}
		out = append(out, data[0])
	}
	return out
}
