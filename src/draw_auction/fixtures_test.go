package draw_auction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/contracts"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/eth/ethtest"
	"github.com/generationsoftware/autotasks/src/utils/signer"
)

const (
	rngChainId = int64(11155111)
	rateScale  = 100_000_000
)

var (
	multicallAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")
	nativeAddress    = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

	rngAuctionAddress = common.HexToAddress("0xA000000000000000000000000000000000000001")
	helperAddress     = common.HexToAddress("0xA000000000000000000000000000000000000002")
	feeTokenAddress   = common.HexToAddress("0xA000000000000000000000000000000000000003")
	rngMarketRate     = common.HexToAddress("0xA000000000000000000000000000000000000004")

	relayerAddress   = common.HexToAddress("0xB000000000000000000000000000000000000001")
	recipientAddress = common.HexToAddress("0xB000000000000000000000000000000000000002")

	testNow = time.Unix(1_700_000_000, 0)
)

func e18(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e18))
}

func rate(usd float64) *big.Int {
	return big.NewInt(int64(usd * rateScale))
}

func testConfig() *config.Config {
	conf := config.Default()
	conf.DrawAuction.RngChainId = rngChainId
	conf.DrawAuction.RngJsonRpcUri = "http://rng"
	conf.DrawAuction.RngPrivateKey = "unused"
	conf.DrawAuction.PassTimeout = 10 * time.Second
	conf.DrawAuction.SubmissionTimeout = time.Second
	return conf
}

// State of the RNG chain
type rngState struct {
	isAuctionOpen  bool
	isRngComplete  bool
	fraction       uint64
	sequenceId     uint32
	winnerFraction uint64
	completedAt    uint64
	fee            *big.Int
	feeToken       common.Address
	balance        *big.Int
	allowance      *big.Int
	feeRate        float64
	nativeRate     float64
}

func defaultRngState() *rngState {
	return &rngState{
		isAuctionOpen:  false,
		isRngComplete:  true,
		fraction:       0,
		sequenceId:     5,
		winnerFraction: 1e17,
		completedAt:    uint64(testNow.Unix()) - 100,
		fee:            e18(1),
		feeToken:       feeTokenAddress,
		balance:        e18(10),
		allowance:      e18(10),
		feeRate:        1.0,
		nativeRate:     1000.0,
	}
}

func newRngChain(state *rngState) *ethtest.FakeChain {
	chain := ethtest.NewFakeChain(rngChainId, multicallAddress)

	chain.Returns(rngAuctionAddress, eth.RngAuctionAbi, "isAuctionOpen", state.isAuctionOpen).
		Returns(rngAuctionAddress, eth.RngAuctionAbi, "currentFractionalReward", state.fraction).
		Returns(rngAuctionAddress, eth.RngAuctionAbi, "isRngComplete", state.isRngComplete).
		Returns(rngAuctionAddress, eth.RngAuctionAbi, "lastSequenceId", state.sequenceId).
		Returns(rngAuctionAddress, eth.RngAuctionAbi, "getLastAuctionResult", lastAuctionResultOut{
			Recipient:      recipientAddress,
			RewardFraction: state.winnerFraction,
		}).
		Returns(rngAuctionAddress, eth.RngAuctionAbi, "getRngResults", big.NewInt(42), state.completedAt).
		Returns(helperAddress, eth.RngAuctionHelperAbi, "estimateRequestFee", state.feeToken, state.fee)

	chain.Returns(feeTokenAddress, eth.Erc20Abi, "name", "Wrapped Link").
		Returns(feeTokenAddress, eth.Erc20Abi, "symbol", "LINK").
		Returns(feeTokenAddress, eth.Erc20Abi, "decimals", uint8(18)).
		Returns(feeTokenAddress, eth.Erc20Abi, "balanceOf", state.balance).
		Returns(feeTokenAddress, eth.Erc20Abi, "allowance", state.allowance)

	rates := map[common.Address]float64{
		feeTokenAddress: state.feeRate,
		nativeAddress:   state.nativeRate,
	}
	chain.On(rngMarketRate, eth.MarketRateAbi, "priceFeed", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{rate(rates[args[0].(common.Address)])}, nil
	})

	return chain
}

func rngBlob() *contracts.ContractsBlob {
	return &contracts.ContractsBlob{
		Name: "Testnet",
		Contracts: []contracts.ContractData{
			{Type: contracts.TypeRngAuction, ChainId: rngChainId, Address: rngAuctionAddress.Hex()},
			{Type: contracts.TypeChainlinkVRFV2DirectRngAuctionHelper, ChainId: rngChainId, Address: helperAddress.Hex()},
			{Type: contracts.TypeMarketRate, ChainId: rngChainId, Address: rngMarketRate.Hex()},
		},
	}
}

// State and addresses of one relay chain
type relayState struct {
	chainId         int64
	prizePool       common.Address
	relayAuction    common.Address
	relayer         common.Address
	marketRate      common.Address
	prizeToken      common.Address
	underlying      common.Address
	reserve         *big.Int
	pending         *big.Int
	sequenceId      uint32
	auctionDuration uint64
	fraction        uint64
	prizeRate       float64
	underlyingRate  float64
	nativeRate      float64
}

func address(chainId int64, n int64) common.Address {
	return common.BigToAddress(big.NewInt(chainId*1000 + n))
}

func defaultRelayState(chainId int64) *relayState {
	return &relayState{
		chainId:         chainId,
		prizePool:       address(chainId, 1),
		relayAuction:    address(chainId, 2),
		relayer:         address(chainId, 3),
		marketRate:      address(chainId, 4),
		prizeToken:      address(chainId, 5),
		reserve:         e18(100),
		pending:         big.NewInt(0),
		sequenceId:      4,
		auctionDuration: 3600,
		fraction:        5e17,
		prizeRate:       1.0,
		nativeRate:      1000.0,
	}
}

func newRelayChain(state *relayState) *ethtest.FakeChain {
	chain := ethtest.NewFakeChain(state.chainId, multicallAddress)

	chain.Returns(state.prizePool, eth.PrizePoolAbi, "prizeToken", state.prizeToken).
		Returns(state.prizePool, eth.PrizePoolAbi, "openDrawEndsAt", uint64(testNow.Unix())+3600).
		Returns(state.prizePool, eth.PrizePoolAbi, "reserve", state.reserve).
		Returns(state.prizePool, eth.PrizePoolAbi, "pendingReserveContributions", state.pending)

	chain.Returns(state.relayAuction, eth.RngRelayAuctionAbi, "lastSequenceId", state.sequenceId).
		Returns(state.relayAuction, eth.RngRelayAuctionAbi, "auctionDuration", state.auctionDuration).
		On(state.relayAuction, eth.RngRelayAuctionAbi, "computeRewardFraction", func(args []interface{}) ([]interface{}, error) {
			if args[0].(uint64) >= state.auctionDuration {
				return nil, errors.New("auction expired")
			}
			return []interface{}{state.fraction}, nil
		})

	chain.Returns(state.prizeToken, eth.Erc20Abi, "name", "Prize Token").
		Returns(state.prizeToken, eth.Erc20Abi, "symbol", "PRIZE").
		Returns(state.prizeToken, eth.Erc20Abi, "decimals", uint8(18))

	if state.underlying != (common.Address{}) {
		chain.Returns(state.prizeToken, eth.Erc4626Abi, "asset", state.underlying)
	}

	rates := map[common.Address]float64{
		state.prizeToken: state.prizeRate,
		nativeAddress:    state.nativeRate,
	}
	if state.underlying != (common.Address{}) {
		rates[state.underlying] = state.underlyingRate
	}
	chain.On(state.marketRate, eth.MarketRateAbi, "priceFeed", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{rate(rates[args[0].(common.Address)])}, nil
	})

	return chain
}

func relayBlob(state *relayState) *contracts.ContractsBlob {
	return &contracts.ContractsBlob{
		Name: fmt.Sprintf("Chain %d", state.chainId),
		Contracts: []contracts.ContractData{
			{Type: contracts.TypePrizePool, ChainId: state.chainId, Address: state.prizePool.Hex()},
			{Type: contracts.TypeRngRelayAuction, ChainId: state.chainId, Address: state.relayAuction.Hex()},
			{Type: contracts.TypeRngAuctionRelayerDirect, ChainId: state.chainId, Address: state.relayer.Hex()},
			{Type: contracts.TypeMarketRate, ChainId: state.chainId, Address: state.marketRate.Hex()},
		},
	}
}

func newTarget(chainId int64, chain eth.Client, blob *contracts.ContractsBlob, s signer.Signer) *RelayTarget {
	return &RelayTarget{
		ChainId: chainId,
		Config: RelayConfig{
			ChainId:               chainId,
			MinProfitThresholdUsd: 1,
			RewardRecipient:       recipientAddress,
		},
		ContractsBlob:   blob,
		Signer:          s,
		ReadConnection:  chain,
		WriteConnection: chain,
	}
}

// Signer that records submissions
type fakeSigner struct {
	mtx sync.Mutex

	address common.Address
	chainId int64
	private bool
	err     error

	// Submissions wait for the context to end
	block bool

	public    []*signer.UnsignedTransaction
	privately []*signer.UnsignedTransaction
}

func newFakeSigner(chainId int64) *fakeSigner {
	return &fakeSigner{address: relayerAddress, chainId: chainId}
}

func (self *fakeSigner) Address() common.Address { return self.address }

func (self *fakeSigner) ChainId() int64 { return self.chainId }

func (self *fakeSigner) CanSubmitPrivate() bool { return self.private }

func (self *fakeSigner) wait(ctx context.Context) error {
	self.mtx.Lock()
	block := self.block
	self.mtx.Unlock()

	if !block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (self *fakeSigner) SubmitTransaction(ctx context.Context, tx *signer.UnsignedTransaction) (common.Hash, error) {
	if err := self.wait(ctx); err != nil {
		return common.Hash{}, err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.err != nil {
		return common.Hash{}, self.err
	}
	self.public = append(self.public, tx)
	return common.BigToHash(big.NewInt(int64(len(self.public)))), nil
}

func (self *fakeSigner) SubmitPrivateTransaction(ctx context.Context, tx *signer.UnsignedTransaction) (common.Hash, error) {
	if err := self.wait(ctx); err != nil {
		return common.Hash{}, err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.err != nil {
		return common.Hash{}, self.err
	}
	self.privately = append(self.privately, tx)
	return common.BigToHash(big.NewInt(int64(1000 + len(self.privately)))), nil
}

func (self *fakeSigner) submissions() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.public) + len(self.privately)
}

// Signer without private submission capability
type publicOnlySigner struct {
	inner *fakeSigner
}

func (self *publicOnlySigner) Address() common.Address { return self.inner.Address() }

func (self *publicOnlySigner) ChainId() int64 { return self.inner.ChainId() }

func (self *publicOnlySigner) SubmitTransaction(ctx context.Context, tx *signer.UnsignedTransaction) (common.Hash, error) {
	return self.inner.SubmitTransaction(ctx, tx)
}

// Contracts provider backed by a map
type fakeProvider struct {
	mtx     sync.Mutex
	blobs   map[int64]*contracts.ContractsBlob
	fetched []int64
}

func (self *fakeProvider) Fetch(ctx context.Context, chainId int64) (*contracts.ContractsBlob, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.fetched = append(self.fetched, chainId)

	blob, ok := self.blobs[chainId]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return blob, nil
}
