package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"ore-boost-cli/config"
)

// Environment variables read at startup. Flags take precedence.
const (
	envRPCURL     = "ORE_RPC_URL"
	envHeliusKey  = "HELIUS_API_KEY"
	envRewardsURL = "ORE_REWARDS_URL"
	envConfig     = "ORE_CONFIG"
	envProfile    = "ORE_PROFILE"
)

// loadEnv reads .env from the working directory when present.
func loadEnv() {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			klog.V(2).Info(".env file not found, using process environment")
			return
		}
		klog.Warningf("failed to load .env: %v", err)
	}
}

// settings are the values a run resolves from flags, environment and the
// deployment file, in that order of precedence.
type settings struct {
	configPath  string
	rpcURL      string
	rewardsURL  string
	profile     string
	keypairPath string
	version     string
	yes         bool
}

// resolveConfig loads the deployment file and applies endpoint overrides.
func resolveConfig(s settings, getenv func(string) string) (config.Config, error) {
	path := s.configPath
	if path == "" {
		path = getenv(envConfig)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	switch {
	case s.rpcURL != "":
		cfg.RPCEndpoint = s.rpcURL
	case getenv(envRPCURL) != "":
		cfg.RPCEndpoint = getenv(envRPCURL)
	case getenv(envHeliusKey) != "":
		cfg.RPCEndpoint = fmt.Sprintf("https://mainnet.helius-rpc.com/?api-key=%s", getenv(envHeliusKey))
		klog.V(1).Info("using Helius RPC endpoint")
	}

	switch {
	case s.rewardsURL != "":
		cfg.RewardsURL = s.rewardsURL
	case getenv(envRewardsURL) != "":
		cfg.RewardsURL = getenv(envRewardsURL)
	}

	if s.version != "" {
		cfg.Version = s.version
	}
	return cfg, nil
}

func profileFromEnv(s settings) string {
	if s.profile != "" {
		return s.profile
	}
	return os.Getenv(envProfile)
}
