// Package config holds the deployment configuration shared by every staking
// component. A Config is built once at startup and passed down by value.
package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// Mainnet program and mint identifiers.
const (
	DelegationProgramAddress  = "J6XAzG8S5KmoBM8GcCFfF8NmtzD7U3QPnbhNiYwsu9we"
	LegacyBoostProgramAddress = "boostmPwypNUQu8qZ8RoWt5DXyYSVYxnBXqbbrGjecc"
	MinerAddress              = "mineXqpDeBeMR8bPQCyy9UneJZbjFywraS3koWZ8SSH"

	OreMintAddress    = "oreoU2P8bN6jkk3jbaiVxYnG1dCXcYxwhwyK9jSybcp"
	OreSolMintAddress = "DrSS5RM7zUd9qjUEdDaf31vnDUSbCrMto6mjqTrHFifN"
	OreIscMintAddress = "meUwDp23AaxhiNKaQCyJ2EAF2T4oe1gSkEkGXSRVdZb"

	DefaultRPCEndpoint = "https://api.mainnet-beta.solana.com"
	DefaultRewardsURL  = "https://ec1ipse.me"
)

// Programs are the on-chain program identifiers a deployment targets.
type Programs struct {
	Delegation  solana.PublicKey
	LegacyBoost solana.PublicKey
	// Boost is the current boost program. It stays zero until configured and
	// only the direct program version needs it.
	Boost solana.PublicKey
	Miner solana.PublicKey

	Token           solana.PublicKey
	AssociatedToken solana.PublicKey
	Rent            solana.PublicKey
	System          solana.PublicKey
}

// Mint is a stakeable token known to the deployment.
type Mint struct {
	Name    string
	Address solana.PublicKey
}

type ComputeBudget struct {
	UnitLimit              uint32
	UnitPriceMicroLamports uint64
}

// Enabled reports whether any compute budget instruction should be emitted.
func (b ComputeBudget) Enabled() bool {
	return b.UnitLimit > 0 || b.UnitPriceMicroLamports > 0
}

// Window describes the recurring period during which boosts accept stake.
type Window struct {
	Cycle  time.Duration
	Active time.Duration
}

type Config struct {
	RPCEndpoint string
	RewardsURL  string

	Programs Programs
	Mints    []Mint

	// Version is the default program version name used when an operation
	// does not name one.
	Version string
	// Discriminators overrides entries of the built-in tables, keyed by
	// version name then operation name.
	Discriminators map[string]map[string]uint8

	ClaimMinRewards    uint64
	UnstakeReserve     uint64
	AtomicMigrateStake bool
	DecimalsFallback   uint8
	FeeFloorLamports   uint64

	BalancePollInterval time.Duration
	RewardsPollInterval time.Duration
	StakeWindow         Window

	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	ComputeBudget       ComputeBudget
}

// Default returns the mainnet deployment.
func Default() Config {
	return Config{
		RPCEndpoint: DefaultRPCEndpoint,
		RewardsURL:  DefaultRewardsURL,
		Programs: Programs{
			Delegation:      solana.MustPublicKeyFromBase58(DelegationProgramAddress),
			LegacyBoost:     solana.MustPublicKeyFromBase58(LegacyBoostProgramAddress),
			Miner:           solana.MustPublicKeyFromBase58(MinerAddress),
			Token:           solana.TokenProgramID,
			AssociatedToken: solana.SPLAssociatedTokenAccountProgramID,
			Rent:            solana.SysVarRentPubkey,
			System:          solana.SystemProgramID,
		},
		Mints: []Mint{
			{Name: "ORE", Address: solana.MustPublicKeyFromBase58(OreMintAddress)},
			{Name: "ORE-SOL LP", Address: solana.MustPublicKeyFromBase58(OreSolMintAddress)},
			{Name: "ORE-ISC LP", Address: solana.MustPublicKeyFromBase58(OreIscMintAddress)},
		},
		Version:             "v2",
		ClaimMinRewards:     5_000_000,
		DecimalsFallback:    11,
		FeeFloorLamports:    10_000,
		BalancePollInterval: 60 * time.Second,
		RewardsPollInterval: 75 * time.Second,
		StakeWindow:         Window{Cycle: time.Hour, Active: 5 * time.Minute},
		ConfirmTimeout:      60 * time.Second,
		ConfirmPollInterval: 700 * time.Millisecond,
	}
}

// MintByName finds a configured mint by its display name or base58 address.
func (c Config) MintByName(name string) (Mint, bool) {
	for _, m := range c.Mints {
		if m.Name == name || m.Address.String() == name {
			return m, true
		}
	}
	return Mint{}, false
}

// MintName returns the display name of a mint, or its address when unknown.
func (c Config) MintName(mint solana.PublicKey) string {
	for _, m := range c.Mints {
		if m.Address.Equals(mint) {
			return m.Name
		}
	}
	return mint.String()
}

// Clone returns a copy of c that shares no slices or maps with it.
// Components keep a clone of the Config they are constructed with.
func (c Config) Clone() Config {
	c.Mints = slices.Clone(c.Mints)
	if c.Discriminators != nil {
		tables := make(map[string]map[string]uint8, len(c.Discriminators))
		for version, table := range c.Discriminators {
			tables[version] = maps.Clone(table)
		}
		c.Discriminators = tables
	}
	return c
}

// Load reads a YAML deployment file and applies it on top of Default. An
// empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := file.apply(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg.Clone(), nil
}
