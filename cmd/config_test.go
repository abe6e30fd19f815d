package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ore-boost-cli/config"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := resolveConfig(settings{}, envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRPCEndpoint, cfg.RPCEndpoint)
	assert.Equal(t, config.DefaultRewardsURL, cfg.RewardsURL)
	assert.Equal(t, "v2", cfg.Version)
}

func TestResolveConfig_EndpointPrecedence(t *testing.T) {
	env := map[string]string{
		envRPCURL:     "https://env.example",
		envHeliusKey:  "k3y",
		envRewardsURL: "https://rewards.env.example",
	}

	cfg, err := resolveConfig(settings{rpcURL: "https://flag.example", rewardsURL: "https://rewards.flag.example"}, envOf(env))
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example", cfg.RPCEndpoint)
	assert.Equal(t, "https://rewards.flag.example", cfg.RewardsURL)

	cfg, err = resolveConfig(settings{}, envOf(env))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.RPCEndpoint)
	assert.Equal(t, "https://rewards.env.example", cfg.RewardsURL)

	delete(env, envRPCURL)
	cfg, err = resolveConfig(settings{}, envOf(env))
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=k3y", cfg.RPCEndpoint)
}

func TestResolveConfig_FileFromEnvAndVersionFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc_endpoint: https://file.example\nversion: v1\n"), 0600))

	cfg, err := resolveConfig(settings{}, envOf(map[string]string{envConfig: path}))
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", cfg.RPCEndpoint)
	assert.Equal(t, "v1", cfg.Version)

	cfg, err = resolveConfig(settings{configPath: path, version: "direct"}, envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "direct", cfg.Version)
}

func TestResolveConfig_MissingFile(t *testing.T) {
	_, err := resolveConfig(settings{configPath: filepath.Join(t.TempDir(), "absent.yaml")}, envOf(nil))
	require.Error(t, err)
}
