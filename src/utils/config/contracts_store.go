package config

import (
	"time"

	"github.com/spf13/viper"
)

type ContractsStore struct {
	// Chain id -> url of the contracts blob
	Urls map[string]string

	// How long a downloaded blob is reused
	CacheTTL time.Duration

	// Timeout of a single download
	RequestTimeout time.Duration

	// Max time spent on retrying a download. 0 means no limit
	MaxElapsedTime time.Duration

	// Max time between download retries
	MaxInterval time.Duration
}

func setContractsStoreDefaults() {
	viper.SetDefault("ContractsStore.Urls", map[string]string{
		"1":        "https://raw.githubusercontent.com/GenerationSoftware/pt-v5-mainnet/a1b2e242447006908ab43ddd922540a04de8cb44/deployments/ethereum/contracts.json",
		"10":       "https://raw.githubusercontent.com/GenerationSoftware/pt-v5-mainnet/50a56ede71b3e9f4a2ba3bc6a8ae48360f70aa86/deployments/optimism/contracts.json",
		"11155111": "https://raw.githubusercontent.com/GenerationSoftware/pt-v5-testnet/d44412f6392888a3a1e9f16fca93e2de45f85033/deployments/ethSepolia/contracts.json",
		"421614":   "https://raw.githubusercontent.com/GenerationSoftware/pt-v5-testnet/83632ac5a6edaa8f01dce24a6fa637d6191d772a/deployments/arbitrumSepolia/contracts.json",
		"11155420": "https://raw.githubusercontent.com/GenerationSoftware/pt-v5-testnet/d44412f6392888a3a1e9f16fca93e2de45f85033/deployments/optimismSepolia/contracts.json",
	})
	viper.SetDefault("ContractsStore.CacheTTL", "10m")
	viper.SetDefault("ContractsStore.RequestTimeout", "15s")
	viper.SetDefault("ContractsStore.MaxElapsedTime", "1m")
	viper.SetDefault("ContractsStore.MaxInterval", "10s")
}
