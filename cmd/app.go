package cmd

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"

	"ore-boost-cli/config"
	"ore-boost-cli/derive"
	"ore-boost-cli/instruction"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/stake"
	"ore-boost-cli/storage"
	"ore-boost-cli/txbuilder"
)

// app is the set of collaborators one command run works with.
type app struct {
	cfg     config.Config
	version instruction.ProgramVersion
	client  *ore_protocol.Client
	rewards *rewards.Client
	deriver *derive.Deriver
	encoder *instruction.Encoder
	service *stake.Service
}

// newApp wires the ledger client, rewards client, builder and service. A
// signer is only loaded when needSigner is set.
func newApp(s settings, needSigner bool) (*app, error) {
	cfg, err := resolveConfig(s, os.Getenv)
	if err != nil {
		return nil, err
	}
	version, err := instruction.ParseVersion(cfg.Version)
	if err != nil {
		return nil, err
	}
	encoder, err := instruction.NewEncoder(cfg.Discriminators)
	if err != nil {
		return nil, fmt.Errorf("invalid discriminator overrides: %w", err)
	}

	var signer solana.PrivateKey
	if needSigner {
		if signer, err = loadSigner(s); err != nil {
			return nil, err
		}
	}

	client, err := ore_protocol.NewClient(cfg.RPCEndpoint, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create solana client: %w", err)
	}
	client.PollInterval = cfg.ConfirmPollInterval
	client.ConfirmTimeout = cfg.ConfirmTimeout

	deriver := derive.New(cfg.Programs)
	rw := rewards.New(cfg.RewardsURL)
	builder := txbuilder.New(deriver, encoder, client, cfg.ComputeBudget)

	klog.V(1).Infof("rpc=%s rewards=%s version=%s", cfg.RPCEndpoint, cfg.RewardsURL, version)
	return &app{
		cfg:     cfg,
		version: version,
		client:  client,
		rewards: rw,
		deriver: deriver,
		encoder: encoder,
		service: stake.New(cfg, builder, encoder, client, client, rw),
	}, nil
}

// loadSigner picks the signing key from --keypair, then the named or
// default profile, then the solana CLI keypair.
func loadSigner(s settings) (solana.PrivateKey, error) {
	if s.keypairPath != "" {
		w, err := ore_protocol.LoadWalletFromFile(s.keypairPath)
		if err != nil {
			return nil, err
		}
		return w.PrivateKey, nil
	}

	db, err := storage.NewWalletStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet storage: %w", err)
	}
	name := profileFromEnv(s)
	if name == "" {
		if name, err = db.DefaultWallet(); err != nil {
			return nil, err
		}
	}
	if name != "" {
		return db.GetWallet(name)
	}

	path, err := ore_protocol.DefaultKeypairPath()
	if err != nil {
		return nil, err
	}
	w, err := ore_protocol.LoadWalletFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("no profile configured: %w", err)
	}
	return w.PrivateKey, nil
}

// staker is the signer's address, zero for read-only runs.
func (a *app) staker() solana.PublicKey {
	return a.client.PublicKey()
}

// resolveMint accepts a configured mint name or a base58 address.
func (a *app) resolveMint(name string) (solana.PublicKey, error) {
	if m, ok := a.cfg.MintByName(name); ok {
		return m.Address, nil
	}
	mint, err := solana.PublicKeyFromBase58(name)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unknown mint %q", name)
	}
	return mint, nil
}

func (a *app) historyPrograms() ore_protocol.HistoryPrograms {
	return ore_protocol.HistoryPrograms{
		Delegation: a.cfg.Programs.Delegation,
		Boost:      a.cfg.Programs.Boost,
	}
}
