package config

import (
	"time"

	"github.com/spf13/viper"
)

type DrawAuction struct {
	// Chain that hosts the RNG auction
	RngChainId int64

	// Json RPC endpoint of the RNG chain
	RngJsonRpcUri string

	// Hex encoded key used to sign transactions on the RNG chain. Takes precedence over relayer api credentials
	RngPrivateKey string

	// Managed relayer credentials, used when there's no private key
	RngRelayerApiKey    string
	RngRelayerApiSecret string
	RngRelayerApiUrl    string

	// Address that receives auction rewards
	RewardRecipient string

	// Submit transactions privately when the chain supports it
	UseFlashbots bool

	// Minimal profit (reward minus gas cost) that justifies a transaction
	MinProfitThresholdUsd float64

	// Cron schedule of passes in serve mode
	Schedule string

	// Max duration of a single pass. Targets that don't finish in time are skipped
	PassTimeout time.Duration

	// How many relay targets are evaluated at once
	RelayConcurrency int

	// Gas limits used for estimating and sending transactions
	RngStartGasLimit uint64
	RngRelayGasLimit uint64

	// Added on top of the estimated gas price
	PriorityBufferWei int64

	// Multicall3 deployment, the same on all supported chains
	MulticallAddress string

	// Token address used to query the native token USD rate
	NativeTokenAddress string

	// Decimals of the values returned by the market rate contract
	MarketRateDecimals int

	// Quote currency passed to the market rate contract
	MarketRateDenominator string

	// Flashbots Protect endpoint and the chains it serves
	FlashbotsRpcUrl   string
	FlashbotsChainIds []int64

	// Timeout for a single batched read or gas price query
	ReadTimeout time.Duration

	// Max duration of the work on one relay target, reads and submission included
	TargetTimeout time.Duration

	// Timeout for a single transaction submission
	SubmissionTimeout time.Duration

	// Max number of requests per second sent to the managed relayer api
	RelayerApiRateLimit float64
}

func setDrawAuctionDefaults() {
	viper.SetDefault("DrawAuction.RngChainId", 0)
	viper.SetDefault("DrawAuction.RngJsonRpcUri", "")
	viper.SetDefault("DrawAuction.RngPrivateKey", "")
	viper.SetDefault("DrawAuction.RngRelayerApiKey", "")
	viper.SetDefault("DrawAuction.RngRelayerApiSecret", "")
	viper.SetDefault("DrawAuction.RngRelayerApiUrl", "https://api.defender.openzeppelin.com")
	viper.SetDefault("DrawAuction.RewardRecipient", "")
	viper.SetDefault("DrawAuction.UseFlashbots", false)
	viper.SetDefault("DrawAuction.MinProfitThresholdUsd", 1.0)
	viper.SetDefault("DrawAuction.Schedule", "@every 5m")
	viper.SetDefault("DrawAuction.PassTimeout", "2m")
	viper.SetDefault("DrawAuction.RelayConcurrency", 1)
	viper.SetDefault("DrawAuction.RngStartGasLimit", 1_050_000)
	viper.SetDefault("DrawAuction.RngRelayGasLimit", 550_000)
	viper.SetDefault("DrawAuction.PriorityBufferWei", 1_000_000_000)
	viper.SetDefault("DrawAuction.MulticallAddress", "0xcA11bde05977b3631167028862bE2a173976CA11")
	viper.SetDefault("DrawAuction.NativeTokenAddress", "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
	viper.SetDefault("DrawAuction.MarketRateDecimals", 8)
	viper.SetDefault("DrawAuction.MarketRateDenominator", "USD")
	viper.SetDefault("DrawAuction.FlashbotsRpcUrl", "https://rpc.flashbots.net")
	viper.SetDefault("DrawAuction.FlashbotsChainIds", []int64{1, 5, 11155111})
	viper.SetDefault("DrawAuction.ReadTimeout", "15s")
	viper.SetDefault("DrawAuction.TargetTimeout", "1m")
	viper.SetDefault("DrawAuction.SubmissionTimeout", "30s")
	viper.SetDefault("DrawAuction.RelayerApiRateLimit", 5.0)
}
