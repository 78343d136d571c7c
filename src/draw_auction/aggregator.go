package draw_auction

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/contracts"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/sirupsen/logrus"
)

// Contracts taking part in the RNG auction
type RngContracts struct {
	ChainId int64

	RngAuction    common.Address
	RngAuctionAbi *abi.ABI

	Helper    common.Address
	HelperAbi *abi.ABI

	// Zero if the chain has no market rate contract
	MarketRate common.Address

	FeeTokenIsSet bool
	FeeToken      TokenResolution
}

// Contracts taking part in the relay auction of one relay target
type RelayContracts struct {
	ChainId int64

	PrizePool    common.Address
	PrizePoolAbi *abi.ABI

	RngRelayAuction    common.Address
	RngRelayAuctionAbi *abi.ABI

	// Receives the relay transaction
	RngAuctionRelayer common.Address

	// Zero if the chain has no market rate contract
	MarketRate common.Address

	PrizeToken      TokenResolution
	AuctionDuration uint64
}

// Reads everything a decision needs, one batched call per chain
type Aggregator struct {
	config *config.Config
	log    *logrus.Entry

	multicall    common.Address
	nativeToken  common.Address
	denominator  string
	rateDecimals int
	readTimeout  time.Duration

	now func() time.Time
}

func NewAggregator(config *config.Config) (self *Aggregator) {
	self = new(Aggregator)
	self.config = config
	self.log = logger.NewSublogger("aggregator")

	self.multicall = common.HexToAddress(config.DrawAuction.MulticallAddress)
	self.nativeToken = common.HexToAddress(config.DrawAuction.NativeTokenAddress)
	self.denominator = config.DrawAuction.MarketRateDenominator
	self.rateDecimals = config.DrawAuction.MarketRateDecimals
	self.readTimeout = config.DrawAuction.ReadTimeout
	self.now = time.Now

	return
}

func (self *Aggregator) WithClock(now func() time.Time) *Aggregator {
	self.now = now
	return self
}

// Each batch is bound by its own read timeout
func (self *Aggregator) newMulticall(caller eth.Caller) *eth.Multicall {
	return eth.NewMulticall(caller, self.multicall).WithTimeout(self.readTimeout)
}

func unavailable(chainId int64, err error) error {
	return fmt.Errorf("%w: chain %d: %w", ErrContextUnavailable, chainId, err)
}

func findContract(blob *contracts.ContractsBlob, contractType string, chainId int64, fallback *abi.ABI) (address common.Address, contractAbi *abi.ABI, err error) {
	data, ok := blob.Find(contractType, chainId)
	if !ok {
		err = fmt.Errorf("%w: chain %d: no %s in contracts blob", ErrSetup, chainId, contractType)
		return
	}
	contractAbi, err = data.GetAbi(fallback)
	if err != nil {
		err = fmt.Errorf("%w: chain %d: %w", ErrSetup, chainId, err)
		return
	}
	return data.GetAddress(), contractAbi, nil
}

func findOptionalContract(blob *contracts.ContractsBlob, contractType string, chainId int64) common.Address {
	data, ok := blob.Find(contractType, chainId)
	if !ok {
		return common.Address{}
	}
	return data.GetAddress()
}

// Checks whether the token is a vault. A reverting asset() call means a plain token
func (self *Aggregator) ResolveToken(ctx context.Context, caller eth.Caller, token common.Address) (resolution TokenResolution, err error) {
	resolution = TokenResolution{Kind: PlainToken, Token: token}

	results, err := self.newMulticall(caller).
		AddOptional("asset", token, eth.Erc4626Abi, "asset").
		Execute(ctx)
	if err != nil {
		return
	}

	if !results.Succeeded("asset") {
		return resolution, nil
	}

	underlying, err := results.Address("asset")
	if err != nil || underlying == (common.Address{}) || underlying == token {
		return resolution, nil
	}

	resolution.Kind = Vault
	resolution.Underlying = underlying
	return
}

// Finds the RNG auction contracts and the fee token
func (self *Aggregator) ResolveRngContracts(ctx context.Context, rng *RelayTarget, gasPrice *big.Int) (out *RngContracts, err error) {
	out = &RngContracts{ChainId: rng.ChainId}

	out.RngAuction, out.RngAuctionAbi, err = findContract(rng.ContractsBlob, contracts.TypeRngAuction, rng.ChainId, eth.RngAuctionAbi)
	if err != nil {
		return nil, err
	}

	out.Helper, out.HelperAbi, err = findContract(rng.ContractsBlob, contracts.TypeChainlinkVRFV2DirectRngAuctionHelper, rng.ChainId, eth.RngAuctionHelperAbi)
	if err != nil {
		return nil, err
	}

	out.MarketRate = findOptionalContract(rng.ContractsBlob, contracts.TypeMarketRate, rng.ChainId)

	results, err := self.newMulticall(rng.ReadConnection).
		Add("estimateRequestFee", out.Helper, out.HelperAbi, "estimateRequestFee", gasPriceOrZero(gasPrice)).
		Execute(ctx)
	if err != nil {
		return nil, unavailable(rng.ChainId, err)
	}

	feeToken, err := results.Address("estimateRequestFee")
	if err != nil {
		return nil, unavailable(rng.ChainId, err)
	}

	if feeToken == (common.Address{}) {
		return
	}

	out.FeeTokenIsSet = true
	out.FeeToken, err = self.ResolveToken(ctx, rng.ReadConnection, feeToken)
	if err != nil {
		return nil, unavailable(rng.ChainId, err)
	}

	self.log.WithField("chain_id", rng.ChainId).
		WithField("fee_token", feeToken.Hex()).
		WithField("fee_token_kind", out.FeeToken.Kind.String()).
		Debug("Resolved RNG contracts")
	return
}

// Finds the relay auction contracts of the target and stores them in the target
func (self *Aggregator) ResolveRelayContracts(ctx context.Context, target *RelayTarget) (out *RelayContracts, err error) {
	if target.Contracts != nil {
		return target.Contracts, nil
	}

	out = &RelayContracts{ChainId: target.ChainId}

	out.PrizePool, out.PrizePoolAbi, err = findContract(target.ContractsBlob, contracts.TypePrizePool, target.ChainId, eth.PrizePoolAbi)
	if err != nil {
		return nil, err
	}

	out.RngRelayAuction, out.RngRelayAuctionAbi, err = findContract(target.ContractsBlob, contracts.TypeRngRelayAuction, target.ChainId, eth.RngRelayAuctionAbi)
	if err != nil {
		return nil, err
	}

	out.RngAuctionRelayer, _, err = findContract(target.ContractsBlob, contracts.TypeRngAuctionRelayerDirect, target.ChainId, eth.RngAuctionRelayerAbi)
	if err != nil {
		return nil, err
	}

	out.MarketRate = findOptionalContract(target.ContractsBlob, contracts.TypeMarketRate, target.ChainId)

	results, err := self.newMulticall(target.ReadConnection).
		Add("prizeToken", out.PrizePool, out.PrizePoolAbi, "prizeToken").
		Add("auctionDuration", out.RngRelayAuction, out.RngRelayAuctionAbi, "auctionDuration").
		Execute(ctx)
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	prizeToken, err := results.Address("prizeToken")
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	out.AuctionDuration, err = results.Uint64("auctionDuration")
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	out.PrizeToken, err = self.ResolveToken(ctx, target.ReadConnection, prizeToken)
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	target.Contracts = out
	return
}

func gasPriceOrZero(gasPrice *big.Int) *big.Int {
	if gasPrice == nil {
		return new(big.Int)
	}
	return gasPrice
}

func (self *Aggregator) addTokenCalls(mc *eth.Multicall, prefix string, token common.Address) {
	mc.AddOptional(prefix+".name", token, eth.Erc20Abi, "name").
		AddOptional(prefix+".symbol", token, eth.Erc20Abi, "symbol").
		Add(prefix+".decimals", token, eth.Erc20Abi, "decimals")
}

func (self *Aggregator) parseToken(results eth.MulticallResults, prefix string, token common.Address) (out Token, err error) {
	out.Address = token

	// Some tokens don't return strings, metadata is only informative
	out.Name, _ = results.String(prefix + ".name")
	out.Symbol, _ = results.String(prefix + ".symbol")

	decimals, err := results.Uint64(prefix + ".decimals")
	if err != nil {
		return
	}
	out.Decimals = uint8(decimals)
	return
}

func (self *Aggregator) addRateCall(mc *eth.Multicall, key string, marketRate common.Address, token common.Address) {
	if marketRate == (common.Address{}) {
		return
	}
	mc.AddOptional(key, marketRate, eth.MarketRateAbi, "priceFeed", token, self.denominator)
}

// Zero means no price data
func (self *Aggregator) parseRate(results eth.MulticallResults, key string) float64 {
	if !results.Succeeded(key) {
		return 0
	}
	rate, err := results.BigInt(key)
	if err != nil {
		return 0
	}
	return eth.ParseFixedPoint(rate, self.rateDecimals)
}

type lastAuctionResultOut struct {
	Recipient      common.Address
	RewardFraction uint64
}

// Reads the RNG auction state and the reward pools of all relay targets
func (self *Aggregator) RngContext(ctx context.Context, rng *RelayTarget, rngContracts *RngContracts, targets []*RelayTarget, gasPrice *big.Int) (out *AuctionContext, err error) {
	relayer := rng.Signer.Address()

	mc := self.newMulticall(rng.ReadConnection).
		Add("isAuctionOpen", rngContracts.RngAuction, rngContracts.RngAuctionAbi, "isAuctionOpen").
		Add("currentFractionalReward", rngContracts.RngAuction, rngContracts.RngAuctionAbi, "currentFractionalReward").
		Add("isRngComplete", rngContracts.RngAuction, rngContracts.RngAuctionAbi, "isRngComplete").
		Add("lastSequenceId", rngContracts.RngAuction, rngContracts.RngAuctionAbi, "lastSequenceId").
		Add("getLastAuctionResult", rngContracts.RngAuction, rngContracts.RngAuctionAbi, "getLastAuctionResult").
		Add("getRngResults", rngContracts.RngAuction, rngContracts.RngAuctionAbi, "getRngResults").
		Add("estimateRequestFee", rngContracts.Helper, rngContracts.HelperAbi, "estimateRequestFee", gasPriceOrZero(gasPrice))

	feeToken := rngContracts.FeeToken.Token
	if rngContracts.FeeTokenIsSet {
		self.addTokenCalls(mc, "feeToken", feeToken)
		mc.Add("feeTokenBalance", feeToken, eth.Erc20Abi, "balanceOf", relayer).
			Add("feeTokenAllowance", feeToken, eth.Erc20Abi, "allowance", relayer, rngContracts.Helper)
		self.addRateCall(mc, "feeTokenRate", rngContracts.MarketRate, rngContracts.FeeToken.PricedAddress())
	}
	self.addRateCall(mc, "nativeRate", rngContracts.MarketRate, self.nativeToken)

	results, err := mc.Execute(ctx)
	if err != nil {
		return nil, unavailable(rng.ChainId, err)
	}

	out, err = self.parseRngContext(results, rngContracts)
	if err != nil {
		return nil, unavailable(rng.ChainId, err)
	}
	out.ChainId = rng.ChainId

	// Reward pools come from other chains, each costs a separate batch
	for _, target := range targets {
		pool, err := self.rewardPool(ctx, target)
		if err != nil {
			self.log.WithError(err).WithField("chain_id", target.ChainId).Warn("Failed to read prize pool reserve, skipping it in RNG reward")
			continue
		}
		out.RewardPools = append(out.RewardPools, pool)
	}

	return out, nil
}

func (self *Aggregator) parseRngContext(results eth.MulticallResults, rngContracts *RngContracts) (out *AuctionContext, err error) {
	out = new(AuctionContext)

	if out.IsAuctionOpen, err = results.Bool("isAuctionOpen"); err != nil {
		return
	}
	if out.CurrentFractionalReward, err = results.Uint64("currentFractionalReward"); err != nil {
		return
	}
	if out.IsRngComplete, err = results.Bool("isRngComplete"); err != nil {
		return
	}

	sequenceId, err := results.Uint64("lastSequenceId")
	if err != nil {
		return
	}
	out.LastSequenceId = uint32(sequenceId)

	raw, err := results.Value("getLastAuctionResult", 0)
	if err != nil {
		return
	}
	last := *abi.ConvertType(raw, new(lastAuctionResultOut)).(*lastAuctionResultOut)
	out.LastAuctionResult = AuctionResult{Recipient: last.Recipient, RewardFraction: last.RewardFraction}

	randomNumber, err := results.Value("getRngResults", 0)
	if err != nil {
		return
	}
	completedAt, err := results.Value("getRngResults", 1)
	if err != nil {
		return
	}
	out.RngResults.RandomNumber, _ = randomNumber.(*big.Int)
	out.RngResults.RngCompletedAt, _ = completedAt.(uint64)

	fee, err := results.Value("estimateRequestFee", 1)
	if err != nil {
		return
	}
	out.FeeAmount, _ = fee.(*big.Int)
	if out.FeeAmount == nil {
		out.FeeAmount = new(big.Int)
	}

	out.NativeTokenRateUsd = self.parseRate(results, "nativeRate")

	out.FeeTokenIsSet = rngContracts.FeeTokenIsSet
	if !out.FeeTokenIsSet {
		return
	}

	out.FeeToken.Token, err = self.parseToken(results, "feeToken", rngContracts.FeeToken.Token)
	if err != nil {
		return
	}
	out.FeeToken.AssetRateUsd = self.parseRate(results, "feeTokenRate")

	if out.FeeTokenBalance, err = results.BigInt("feeTokenBalance"); err != nil {
		return
	}
	if out.FeeTokenAllowance, err = results.BigInt("feeTokenAllowance"); err != nil {
		return
	}

	out.FeeUsd = eth.ParseFixedPoint(out.FeeAmount, int(out.FeeToken.Decimals)) * out.FeeToken.AssetRateUsd
	return
}

func (self *Aggregator) addPoolCalls(mc *eth.Multicall, relayContracts *RelayContracts) {
	mc.Add("reserve", relayContracts.PrizePool, relayContracts.PrizePoolAbi, "reserve").
		Add("pendingReserveContributions", relayContracts.PrizePool, relayContracts.PrizePoolAbi, "pendingReserveContributions")
	self.addTokenCalls(mc, "prizeToken", relayContracts.PrizeToken.Token)
	self.addRateCall(mc, "prizeTokenRate", relayContracts.MarketRate, relayContracts.PrizeToken.PricedAddress())
}

// Reserve including pending contributions
func (self *Aggregator) parsePool(results eth.MulticallResults, relayContracts *RelayContracts) (pool RewardPool, err error) {
	pool.ChainId = relayContracts.ChainId

	reserve, err := results.BigInt("reserve")
	if err != nil {
		return
	}
	pending, err := results.BigInt("pendingReserveContributions")
	if err != nil {
		return
	}
	pool.Amount = new(big.Int).Add(reserve, pending)

	pool.Token.Token, err = self.parseToken(results, "prizeToken", relayContracts.PrizeToken.Token)
	if err != nil {
		return
	}
	pool.Token.AssetRateUsd = self.parseRate(results, "prizeTokenRate")
	return
}

func (self *Aggregator) rewardPool(ctx context.Context, target *RelayTarget) (pool RewardPool, err error) {
	relayContracts, err := self.ResolveRelayContracts(ctx, target)
	if err != nil {
		return
	}

	mc := self.newMulticall(target.ReadConnection)
	self.addPoolCalls(mc, relayContracts)

	results, err := mc.Execute(ctx)
	if err != nil {
		return pool, unavailable(target.ChainId, err)
	}

	return self.parsePool(results, relayContracts)
}

// Seconds since the RNG completed, capped at the auction duration
func (self *Aggregator) elapsed(completedAt uint64, duration uint64) uint64 {
	now := uint64(self.now().Unix())
	if completedAt == 0 || completedAt > now {
		return 0
	}
	return min(now-completedAt, duration)
}

// Reads the relay auction state of the target and stores it in the target
func (self *Aggregator) RelayContext(ctx context.Context, target *RelayTarget, rngCtx *AuctionContext) (out *RelayAuctionContext, err error) {
	relayContracts, err := self.ResolveRelayContracts(ctx, target)
	if err != nil {
		return
	}

	completedAt := rngCtx.RngResults.RngCompletedAt
	elapsed := self.elapsed(completedAt, relayContracts.AuctionDuration)

	mc := self.newMulticall(target.ReadConnection).
		Add("openDrawEndsAt", relayContracts.PrizePool, relayContracts.PrizePoolAbi, "openDrawEndsAt").
		Add("relayLastSequenceId", relayContracts.RngRelayAuction, relayContracts.RngRelayAuctionAbi, "lastSequenceId").
		AddOptional("computeRewardFraction", relayContracts.RngRelayAuction, relayContracts.RngRelayAuctionAbi, "computeRewardFraction", elapsed)
	self.addPoolCalls(mc, relayContracts)
	self.addRateCall(mc, "nativeRate", relayContracts.MarketRate, self.nativeToken)

	results, err := mc.Execute(ctx)
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	out = &RelayAuctionContext{
		ChainId:           target.ChainId,
		RngResults:        rngCtx.RngResults,
		LastAuctionResult: rngCtx.LastAuctionResult,
		RngLastSequenceId: rngCtx.LastSequenceId,
		RngIsComplete:     rngCtx.IsRngComplete,
	}

	if out.PrizePoolOpenDrawEndsAt, err = results.Uint64("openDrawEndsAt"); err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	sequenceId, err := results.Uint64("relayLastSequenceId")
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}
	out.RelayLastSequenceId = uint32(sequenceId)

	if results.Succeeded("computeRewardFraction") {
		out.RelayRewardFraction, _ = results.Uint64("computeRewardFraction")
	}

	pool, err := self.parsePool(results, relayContracts)
	if err != nil {
		return nil, unavailable(target.ChainId, err)
	}

	// The RNG auction winner takes its share of the reserve first
	pool.Amount = eth.MulRemainingFraction(pool.Amount, rngCtx.LastAuctionResult.RewardFraction)
	out.RewardPool = pool

	out.NativeTokenRateUsd = self.parseRate(results, "nativeRate")

	out.RelayIsAuctionOpen = rngCtx.IsRngComplete &&
		completedAt > 0 &&
		elapsed < relayContracts.AuctionDuration

	target.Context = out
	return
}
