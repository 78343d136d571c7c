package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs of the contracts the bot talks to.
// Used whenever the contracts blob doesn't carry an ABI for a contract.
const (
	Erc20AbiJson = `[
		{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	Erc4626AbiJson = `[
		{"type":"function","name":"asset","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	MarketRateAbiJson = `[
		{"type":"function","name":"priceFeed","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"denominator","type":"string"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	RngAuctionAbiJson = `[
		{"type":"function","name":"isAuctionOpen","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"currentFractionalReward","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
		{"type":"function","name":"isRngComplete","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"lastSequenceId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
		{"type":"function","name":"getLastAuctionResult","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple","components":[{"name":"recipient","type":"address"},{"name":"rewardFraction","type":"uint64"}]}]},
		{"type":"function","name":"getRngResults","stateMutability":"view","inputs":[],"outputs":[{"name":"randomNumber","type":"uint256"},{"name":"rngCompletedAt","type":"uint64"}]}
	]`

	RngAuctionHelperAbiJson = `[
		{"type":"function","name":"estimateRequestFee","stateMutability":"view","inputs":[{"name":"gasPrice","type":"uint256"}],"outputs":[{"name":"feeToken","type":"address"},{"name":"requestFee","type":"uint256"}]},
		{"type":"function","name":"transferFeeAndStartRngRequest","stateMutability":"nonpayable","inputs":[{"name":"rewardRecipient","type":"address"}],"outputs":[]}
	]`

	RngRelayAuctionAbiJson = `[
		{"type":"function","name":"lastSequenceId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
		{"type":"function","name":"auctionDuration","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
		{"type":"function","name":"computeRewardFraction","stateMutability":"view","inputs":[{"name":"auctionElapsedTime","type":"uint64"}],"outputs":[{"name":"","type":"uint64"}]}
	]`

	RngAuctionRelayerAbiJson = `[
		{"type":"function","name":"relay","stateMutability":"nonpayable","inputs":[{"name":"rngRelayAuction","type":"address"},{"name":"rewardRecipient","type":"address"}],"outputs":[{"name":"","type":"bytes"}]}
	]`

	PrizePoolAbiJson = `[
		{"type":"function","name":"prizeToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"openDrawEndsAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
		{"type":"function","name":"reserve","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint104"}]},
		{"type":"function","name":"pendingReserveContributions","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`

	Multicall3AbiJson = `[
		{"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}]}],"outputs":[{"name":"returnData","type":"tuple[]","components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}]}]}
	]`
)

var (
	Erc20Abi             = mustParseAbi(Erc20AbiJson)
	Erc4626Abi           = mustParseAbi(Erc4626AbiJson)
	MarketRateAbi        = mustParseAbi(MarketRateAbiJson)
	RngAuctionAbi        = mustParseAbi(RngAuctionAbiJson)
	RngAuctionHelperAbi  = mustParseAbi(RngAuctionHelperAbiJson)
	RngRelayAuctionAbi   = mustParseAbi(RngRelayAuctionAbiJson)
	RngAuctionRelayerAbi = mustParseAbi(RngAuctionRelayerAbiJson)
	PrizePoolAbi         = mustParseAbi(PrizePoolAbiJson)
	Multicall3Abi        = mustParseAbi(Multicall3AbiJson)
)

func mustParseAbi(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return &parsed
}
