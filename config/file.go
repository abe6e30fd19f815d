package config

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

type fileConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	RewardsURL  string `yaml:"rewards_url"`
	Version     string `yaml:"version"`

	Programs struct {
		Delegation  string `yaml:"delegation"`
		LegacyBoost string `yaml:"legacy_boost"`
		Boost       string `yaml:"boost"`
		Miner       string `yaml:"miner"`
	} `yaml:"programs"`

	Mints []struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
	} `yaml:"mints"`

	Discriminators map[string]map[string]uint8 `yaml:"discriminators"`

	Claim struct {
		MinRewards *uint64 `yaml:"min_rewards"`
	} `yaml:"claim"`

	Policy struct {
		UnstakeReserve     *uint64 `yaml:"unstake_reserve"`
		AtomicMigrateStake *bool   `yaml:"atomic_migrate_stake"`
		DecimalsFallback   *uint8  `yaml:"decimals_fallback"`
		FeeFloorLamports   *uint64 `yaml:"fee_floor_lamports"`
	} `yaml:"policy"`

	Poll struct {
		Balances     time.Duration `yaml:"balances"`
		Rewards      time.Duration `yaml:"rewards"`
		WindowCycle  time.Duration `yaml:"window_cycle"`
		WindowActive time.Duration `yaml:"window_active"`
	} `yaml:"poll"`

	Confirm struct {
		Timeout  time.Duration `yaml:"timeout"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"confirm"`

	ComputeBudget struct {
		UnitLimit uint32 `yaml:"unit_limit"`
		UnitPrice uint64 `yaml:"unit_price"`
	} `yaml:"compute_budget"`
}

func (f *fileConfig) apply(cfg *Config) error {
	if f.RPCEndpoint != "" {
		cfg.RPCEndpoint = f.RPCEndpoint
	}
	if f.RewardsURL != "" {
		cfg.RewardsURL = f.RewardsURL
	}
	if f.Version != "" {
		cfg.Version = f.Version
	}

	keys := []struct {
		name string
		in   string
		out  *solana.PublicKey
	}{
		{"programs.delegation", f.Programs.Delegation, &cfg.Programs.Delegation},
		{"programs.legacy_boost", f.Programs.LegacyBoost, &cfg.Programs.LegacyBoost},
		{"programs.boost", f.Programs.Boost, &cfg.Programs.Boost},
		{"programs.miner", f.Programs.Miner, &cfg.Programs.Miner},
	}
	for _, k := range keys {
		if k.in == "" {
			continue
		}
		pk, err := solana.PublicKeyFromBase58(k.in)
		if err != nil {
			return fmt.Errorf("%s: %w", k.name, err)
		}
		*k.out = pk
	}

	if len(f.Mints) > 0 {
		mints := make([]Mint, 0, len(f.Mints))
		for _, m := range f.Mints {
			pk, err := solana.PublicKeyFromBase58(m.Address)
			if err != nil {
				return fmt.Errorf("mint %q: %w", m.Name, err)
			}
			name := m.Name
			if name == "" {
				name = pk.String()
			}
			mints = append(mints, Mint{Name: name, Address: pk})
		}
		cfg.Mints = mints
	}

	if len(f.Discriminators) > 0 {
		cfg.Discriminators = make(map[string]map[string]uint8, len(f.Discriminators))
		for version, table := range f.Discriminators {
			copied := make(map[string]uint8, len(table))
			for op, disc := range table {
				copied[op] = disc
			}
			cfg.Discriminators[version] = copied
		}
	}

	if f.Claim.MinRewards != nil {
		cfg.ClaimMinRewards = *f.Claim.MinRewards
	}
	if f.Policy.UnstakeReserve != nil {
		cfg.UnstakeReserve = *f.Policy.UnstakeReserve
	}
	if f.Policy.AtomicMigrateStake != nil {
		cfg.AtomicMigrateStake = *f.Policy.AtomicMigrateStake
	}
	if f.Policy.DecimalsFallback != nil {
		cfg.DecimalsFallback = *f.Policy.DecimalsFallback
	}
	if f.Policy.FeeFloorLamports != nil {
		cfg.FeeFloorLamports = *f.Policy.FeeFloorLamports
	}

	setDuration(&cfg.BalancePollInterval, f.Poll.Balances)
	setDuration(&cfg.RewardsPollInterval, f.Poll.Rewards)
	setDuration(&cfg.StakeWindow.Cycle, f.Poll.WindowCycle)
	setDuration(&cfg.StakeWindow.Active, f.Poll.WindowActive)
	setDuration(&cfg.ConfirmTimeout, f.Confirm.Timeout)
	setDuration(&cfg.ConfirmPollInterval, f.Confirm.Interval)

	if cfg.StakeWindow.Active > cfg.StakeWindow.Cycle {
		return fmt.Errorf("poll.window_active (%s) exceeds poll.window_cycle (%s)", cfg.StakeWindow.Active, cfg.StakeWindow.Cycle)
	}

	cfg.ComputeBudget = ComputeBudget{
		UnitLimit:              f.ComputeBudget.UnitLimit,
		UnitPriceMicroLamports: f.ComputeBudget.UnitPrice,
	}
	return nil
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
