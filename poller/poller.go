// Package poller keeps an advisory view of wallet balances and staking
// rewards fresh on fixed intervals. Nothing in it gates or cancels a staking
// operation.
package poller

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"ore-boost-cli/config"
	"ore-boost-cli/metrics"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
)

// maxConcurrentReads bounds the balance reads of one poll.
const maxConcurrentReads = 4

type Ledger interface {
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (ore_protocol.TokenAmount, error)
}

type Rewards interface {
	StakeAccounts(ctx context.Context, staker solana.PublicKey) ([]rewards.StakeAccount, error)
}

// TokenBalance is the owner's balance of one configured mint.
type TokenBalance struct {
	Name     string           `json:"name"`
	Mint     solana.PublicKey `json:"mint"`
	Amount   uint64           `json:"amount"`
	Decimals uint8            `json:"decimals"`
}

// Snapshot is the latest polled state. Errors hold the message of the last
// failed poll of each source and are cleared by the next success.
type Snapshot struct {
	Owner         solana.PublicKey       `json:"owner"`
	Lamports      uint64                 `json:"lamports"`
	Tokens        []TokenBalance         `json:"tokens"`
	StakeAccounts []rewards.StakeAccount `json:"stakeAccounts"`
	BalancesAt    time.Time              `json:"balancesAt"`
	RewardsAt     time.Time              `json:"rewardsAt"`
	Errors        map[string]string      `json:"errors,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	s.Tokens = slices.Clone(s.Tokens)
	s.StakeAccounts = slices.Clone(s.StakeAccounts)
	s.Errors = maps.Clone(s.Errors)
	return s
}

const (
	sourceBalances = "balances"
	sourceRewards  = "rewards"
)

var (
	metricPolls    = metrics.LazyLoadCounterVec("polls_total", []string{"source", "outcome"})
	metricLamports = metrics.LazyLoadGaugeVec("wallet_lamports", []string{"owner"})
	metricTokens   = metrics.LazyLoadGaugeVec("wallet_token_base_units", []string{"owner", "mint"})
	metricRewards  = metrics.LazyLoadGaugeVec("stake_rewards_base_units", []string{"owner", "mint"})
)

type Poller struct {
	owner    solana.PublicKey
	mints    []config.Mint
	window   config.Window
	balances time.Duration
	rewards  time.Duration

	ledger Ledger
	api    Rewards
	now    func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a poller for owner. A nil api disables reward polling.
func New(cfg config.Config, owner solana.PublicKey, ledger Ledger, api Rewards) *Poller {
	return &Poller{
		owner:    owner,
		mints:    slices.Clone(cfg.Mints),
		window:   cfg.StakeWindow,
		balances: cfg.BalancePollInterval,
		rewards:  cfg.RewardsPollInterval,
		ledger:   ledger,
		api:      api,
		now:      time.Now,
		snap:     Snapshot{Owner: owner},
	}
}

// Snapshot returns a copy of the latest polled state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.clone()
}

// Window returns the stake window state at the current time.
func (p *Poller) Window() WindowState {
	return WindowAt(p.window, p.now())
}

// Run polls every source immediately and then on its interval until ctx is
// done. Poll failures are logged and recorded in the snapshot.
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	loop := func(interval time.Duration, poll func(context.Context) error) {
		defer wg.Done()
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := poll(ctx); err != nil && ctx.Err() == nil {
				klog.Warningf("poll failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}

	wg.Add(1)
	go loop(p.balances, p.PollBalances)
	if p.api != nil {
		wg.Add(1)
		go loop(p.rewards, p.PollRewards)
	}
	wg.Wait()
	return ctx.Err()
}

// PollBalances reads the native balance and every configured mint balance
// concurrently and publishes them together.
func (p *Poller) PollBalances(ctx context.Context) error {
	var lamports uint64
	tokens := make([]TokenBalance, len(p.mints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	g.Go(func() error {
		var err error
		lamports, err = p.ledger.GetBalance(gctx, p.owner)
		return err
	})
	for i, m := range p.mints {
		g.Go(func() error {
			balance, err := p.ledger.GetTokenBalance(gctx, p.owner, m.Address)
			if err != nil {
				return fmt.Errorf("failed to read %s balance: %w", m.Name, err)
			}
			tokens[i] = TokenBalance{Name: m.Name, Mint: m.Address, Amount: balance.Amount, Decimals: balance.Decimals}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.recordFailure(sourceBalances, err)
		return err
	}

	owner := p.owner.String()
	metricLamports().SetWithLabel(int64(lamports), map[string]string{"owner": owner})
	for _, t := range tokens {
		metricTokens().SetWithLabel(int64(t.Amount), map[string]string{"owner": owner, "mint": t.Name})
	}
	metricPolls().AddWithLabel(1, map[string]string{"source": sourceBalances, "outcome": "ok"})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Lamports = lamports
	p.snap.Tokens = tokens
	p.snap.BalancesAt = p.now()
	delete(p.snap.Errors, sourceBalances)
	return nil
}

// PollRewards refreshes the staker's stake accounts from the rewards service.
func (p *Poller) PollRewards(ctx context.Context) error {
	if p.api == nil {
		return nil
	}
	accounts, err := p.api.StakeAccounts(ctx, p.owner)
	if err != nil {
		p.recordFailure(sourceRewards, err)
		return err
	}

	owner := p.owner.String()
	for _, a := range accounts {
		metricRewards().SetWithLabel(int64(a.RewardsBalance), map[string]string{"owner": owner, "mint": a.Mint.String()})
	}
	metricPolls().AddWithLabel(1, map[string]string{"source": sourceRewards, "outcome": "ok"})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.StakeAccounts = accounts
	p.snap.RewardsAt = p.now()
	delete(p.snap.Errors, sourceRewards)
	return nil
}

func (p *Poller) recordFailure(source string, err error) {
	metricPolls().AddWithLabel(1, map[string]string{"source": source, "outcome": "error"})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap.Errors == nil {
		p.snap.Errors = map[string]string{}
	}
	p.snap.Errors[source] = err.Error()
}
