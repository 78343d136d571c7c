package draw_auction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Auction the bot may trigger
type Phase string

const (
	PhaseRngStart Phase = "rng_start"
	PhaseRngRelay Phase = "rng_relay"
)

type Token struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// Token with a USD rate captured in the same snapshot. Zero rate means no price data
type TokenWithRate struct {
	Token
	AssetRateUsd float64
}

type TokenKind int

const (
	PlainToken TokenKind = iota
	Vault
)

func (self TokenKind) String() string {
	if self == Vault {
		return "vault"
	}
	return "plain"
}

// Result of checking whether a token wraps another asset
type TokenResolution struct {
	Kind       TokenKind
	Token      common.Address
	Underlying common.Address
}

// Address whose market rate prices the token
func (self TokenResolution) PricedAddress() common.Address {
	if self.Kind == Vault {
		return self.Underlying
	}
	return self.Token
}

// Last completed auction round
type AuctionResult struct {
	Recipient common.Address

	// UD2x18
	RewardFraction uint64
}

func (self AuctionResult) RewardFractionFloat() float64 {
	return fractionToFloat(self.RewardFraction)
}

type RngResults struct {
	RandomNumber   *big.Int
	RngCompletedAt uint64
}

// Amount of a token the auction reward is a fraction of
type RewardPool struct {
	ChainId int64
	Amount  *big.Int
	Token   TokenWithRate
}

// State of the auction on the RNG chain
type AuctionContext struct {
	ChainId int64

	FeeTokenIsSet     bool
	FeeToken          TokenWithRate
	FeeAmount         *big.Int
	FeeUsd            float64
	FeeTokenBalance   *big.Int
	FeeTokenAllowance *big.Int

	IsAuctionOpen           bool
	IsRngComplete           bool
	CurrentFractionalReward uint64 // UD2x18
	LastSequenceId          uint32
	LastAuctionResult       AuctionResult
	RngResults              RngResults

	NativeTokenRateUsd float64

	// Prize pool reserves of all relay targets
	RewardPools []RewardPool
}

// State of the relay auction on one relay target
type RelayAuctionContext struct {
	ChainId int64

	PrizePoolOpenDrawEndsAt uint64
	RngResults              RngResults
	LastAuctionResult       AuctionResult

	// Reserve left after the RNG auction winner's share
	RewardPool RewardPool

	RelayIsAuctionOpen  bool
	RelayRewardFraction uint64 // UD2x18
	RelayLastSequenceId uint32
	RngLastSequenceId   uint32
	RngIsComplete       bool
	NativeTokenRateUsd  float64
}

func (self *RelayAuctionContext) IsAlreadyRelayed() bool {
	return self.RelayLastSequenceId >= self.RngLastSequenceId
}

// Input of the economics evaluation
type Snapshot struct {
	Phase   Phase
	ChainId int64

	IsAuctionOpen bool

	// Upstream RNG completion, required by relays only
	IsRngComplete bool

	// Fraction of the reward pools paid out right now, expected in [0, 1]
	RewardFraction float64
	RewardPools    []RewardPool

	NativeTokenRateUsd float64
	GasLimit           uint64

	// RNG start prerequisites
	FeeTokenIsSet     bool
	FeeAmount         *big.Int
	FeeTokenBalance   *big.Int
	FeeTokenAllowance *big.Int

	// Relays
	AlreadyRelayed bool

	Action Action
}

func (self *AuctionContext) Snapshot(gasLimit uint64, action Action) Snapshot {
	return Snapshot{
		Phase:              PhaseRngStart,
		ChainId:            self.ChainId,
		IsAuctionOpen:      self.IsAuctionOpen,
		IsRngComplete:      self.IsRngComplete,
		RewardFraction:     fractionToFloat(self.CurrentFractionalReward),
		RewardPools:        self.RewardPools,
		NativeTokenRateUsd: self.NativeTokenRateUsd,
		GasLimit:           gasLimit,
		FeeTokenIsSet:      self.FeeTokenIsSet,
		FeeAmount:          self.FeeAmount,
		FeeTokenBalance:    self.FeeTokenBalance,
		FeeTokenAllowance:  self.FeeTokenAllowance,
		Action:             action,
	}
}

func (self *RelayAuctionContext) Snapshot(gasLimit uint64, action Action) Snapshot {
	return Snapshot{
		Phase:              PhaseRngRelay,
		ChainId:            self.ChainId,
		IsAuctionOpen:      self.RelayIsAuctionOpen,
		IsRngComplete:      self.RngIsComplete,
		RewardFraction:     fractionToFloat(self.RelayRewardFraction),
		RewardPools:        []RewardPool{self.RewardPool},
		NativeTokenRateUsd: self.NativeTokenRateUsd,
		GasLimit:           gasLimit,
		AlreadyRelayed:     self.IsAlreadyRelayed(),
		Action:             action,
	}
}

// Transaction the bot may send
type Action struct {
	Phase   Phase
	ChainId int64

	// Called contract: rng auction helper or rng auction relayer
	To              common.Address
	RewardRecipient common.Address

	// Relays only
	RngRelayAuction common.Address

	GasLimit uint64
}

// Outcome of the economics evaluation, either skip or act now
type Decision struct {
	Act    bool
	Reason string
	Action Action

	ExpectedRewardUsd float64
	GasCostUsd        float64
	ExpectedProfitUsd float64
}

func Skip(reason string) Decision {
	return Decision{Reason: reason}
}

func ActNow(action Action, expectedProfitUsd float64) Decision {
	return Decision{Act: true, Action: action, ExpectedProfitUsd: expectedProfitUsd}
}

// Submitted transaction. Confirmation is not tracked
type TransactionHandle struct {
	Hash     common.Hash
	ChainId  int64
	Phase    Phase
	Private  bool
	GasPrice *big.Int
	GasLimit uint64
}

type OutcomeStatus string

const (
	StatusSubmitted OutcomeStatus = "submitted"
	StatusSkipped   OutcomeStatus = "skipped"
	StatusFailed    OutcomeStatus = "failed"
)

// What happened to one target in a pass
type Outcome struct {
	ChainId int64         `json:"chainId"`
	Phase   Phase         `json:"phase"`
	Status  OutcomeStatus `json:"status"`
	TxHash  string        `json:"txHash,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Err     error         `json:"-"`
	Cause   string        `json:"cause,omitempty"`

	ExpectedProfitUsd float64 `json:"expectedProfitUsd,omitempty"`
}

func submitted(phase Phase, chainId int64, handle *TransactionHandle, profit float64) Outcome {
	return Outcome{ChainId: chainId, Phase: phase, Status: StatusSubmitted, TxHash: handle.Hash.Hex(), ExpectedProfitUsd: profit}
}

func skipped(phase Phase, chainId int64, reason string) Outcome {
	return Outcome{ChainId: chainId, Phase: phase, Status: StatusSkipped, Reason: reason}
}

func failed(phase Phase, chainId int64, err error) Outcome {
	return Outcome{ChainId: chainId, Phase: phase, Status: StatusFailed, Err: err, Cause: err.Error()}
}

// Result of one pass, relays are in configuration order
type PassReport struct {
	Rng    Outcome   `json:"rng"`
	Relays []Outcome `json:"relays"`
}
