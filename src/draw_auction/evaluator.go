package draw_auction

import (
	"fmt"
	"math"
	"math/big"

	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/sirupsen/logrus"
)

// Skip reasons
const (
	ReasonAuctionClosed       = "auction closed"
	ReasonRngIncomplete       = "rng not complete"
	ReasonZeroReward          = "zero reward fraction"
	ReasonPriceUnavailable    = "price unavailable"
	ReasonBelowThreshold      = "below profit threshold"
	ReasonInsufficientBalance = "insufficient fee token balance"
	ReasonInsufficientAllow   = "insufficient fee token allowance"
	ReasonAlreadyRelayed      = "already relayed"
	ReasonDeadlineExceeded    = "deadline exceeded"
)

func fractionToFloat(fraction uint64) float64 {
	return eth.ParseFraction(fraction)
}

// Turns snapshots into go/no-go decisions
type Evaluator struct {
	log *logrus.Entry
}

func NewEvaluator() (self *Evaluator) {
	self = new(Evaluator)
	self.log = logger.NewSublogger("evaluator")
	return
}

// USD value of the reward pools. Pools without a price are left out, ok is false if none has one
func rewardUsd(fraction float64, pools []RewardPool) (total float64, ok bool) {
	for _, pool := range pools {
		if pool.Token.AssetRateUsd <= 0 || pool.Amount == nil {
			continue
		}
		ok = true
		amount := eth.ParseFixedPoint(pool.Amount, int(pool.Token.Decimals))
		total += fraction * amount * pool.Token.AssetRateUsd
	}
	return
}

// Cost of the transaction in USD at the given gas price
func gasCostUsd(gasPrice *big.Int, gasLimit uint64, nativeRateUsd float64) float64 {
	if gasPrice == nil {
		return 0
	}
	wei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	return eth.WeiToEther(wei) * nativeRateUsd
}

func lessThan(a, b *big.Int) bool {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b) < 0
}

// Decides whether the action in the snapshot is worth sending right now.
// Errors are returned only for invariant violations.
func (self *Evaluator) Evaluate(snapshot Snapshot, minProfitThresholdUsd float64, gasPriceEstimate *big.Int) (decision Decision, err error) {
	decision, err = self.evaluate(snapshot, minProfitThresholdUsd, gasPriceEstimate)
	if err != nil {
		self.log.WithError(err).
			WithField("chainId", snapshot.ChainId).
			WithField("phase", snapshot.Phase).
			Error("Invalid snapshot")
		return
	}

	decision.Action = snapshot.Action

	name := "skip"
	if decision.Act {
		name = "act"
	}
	self.log.WithField("decision", name).
		WithField("reason", decision.Reason).
		WithField("expectedRewardUsd", decision.ExpectedRewardUsd).
		WithField("gasCostUsd", decision.GasCostUsd).
		WithField("profitUsd", decision.ExpectedProfitUsd).
		WithField("chainId", snapshot.ChainId).
		WithField("phase", snapshot.Phase).
		Info("Evaluated auction")
	return
}

func (self *Evaluator) evaluate(snapshot Snapshot, minProfitThresholdUsd float64, gasPriceEstimate *big.Int) (Decision, error) {
	fraction := snapshot.RewardFraction
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return Decision{}, fmt.Errorf("%w: reward fraction %v outside [0, 1]", ErrFatal, fraction)
	}

	if !snapshot.IsAuctionOpen {
		return Skip(ReasonAuctionClosed), nil
	}

	if snapshot.Phase == PhaseRngRelay {
		if !snapshot.IsRngComplete {
			return Skip(ReasonRngIncomplete), nil
		}
		if snapshot.AlreadyRelayed {
			return Skip(ReasonAlreadyRelayed), nil
		}
	}

	if fraction == 0 {
		return Skip(ReasonZeroReward), nil
	}

	// Without a fee token the request costs nothing but gas
	if snapshot.Phase == PhaseRngStart && snapshot.FeeTokenIsSet {
		if lessThan(snapshot.FeeTokenBalance, snapshot.FeeAmount) {
			return Skip(ReasonInsufficientBalance), nil
		}
		if lessThan(snapshot.FeeTokenAllowance, snapshot.FeeAmount) {
			return Skip(ReasonInsufficientAllow), nil
		}
	}

	reward, ok := rewardUsd(fraction, snapshot.RewardPools)
	if !ok || snapshot.NativeTokenRateUsd <= 0 {
		return Skip(ReasonPriceUnavailable), nil
	}

	cost := gasCostUsd(gasPriceEstimate, snapshot.GasLimit, snapshot.NativeTokenRateUsd)
	profit := reward - cost

	var decision Decision
	if profit >= minProfitThresholdUsd {
		decision = ActNow(snapshot.Action, profit)
	} else {
		decision = Skip(ReasonBelowThreshold)
		decision.ExpectedProfitUsd = profit
	}
	decision.ExpectedRewardUsd = reward
	decision.GasCostUsd = cost
	return decision, nil
}

// Gas price in gwei, for logging
func toGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	return eth.ParseFixedPoint(wei, 9)
}
