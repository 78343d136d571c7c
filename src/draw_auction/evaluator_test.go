package draw_auction

import (
	"math"
	"math/big"
	"testing"

	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/stretchr/testify/require"
)

func pool(amount *big.Int, rateUsd float64) RewardPool {
	return RewardPool{
		ChainId: 10,
		Amount:  amount,
		Token: TokenWithRate{
			Token:        Token{Symbol: "PRIZE", Decimals: 18},
			AssetRateUsd: rateUsd,
		},
	}
}

func gwei(v int64) *big.Int {
	return eth.GweiToWei(v)
}

func rngSnapshot(fraction float64) Snapshot {
	return Snapshot{
		Phase:              PhaseRngStart,
		ChainId:            rngChainId,
		IsAuctionOpen:      true,
		RewardFraction:     fraction,
		RewardPools:        []RewardPool{pool(e18(100), 1.0)},
		NativeTokenRateUsd: 1000,
		GasLimit:           1_000_000,
		FeeTokenIsSet:      true,
		FeeAmount:          e18(1),
		FeeTokenBalance:    e18(2),
		FeeTokenAllowance:  e18(2),
		Action:             Action{Phase: PhaseRngStart, ChainId: rngChainId, To: helperAddress},
	}
}

func relaySnapshot(fraction float64) Snapshot {
	return Snapshot{
		Phase:              PhaseRngRelay,
		ChainId:            10,
		IsAuctionOpen:      true,
		IsRngComplete:      true,
		RewardFraction:     fraction,
		RewardPools:        []RewardPool{pool(e18(100), 1.0)},
		NativeTokenRateUsd: 1000,
		GasLimit:           1_000_000,
		Action:             Action{Phase: PhaseRngRelay, ChainId: 10},
	}
}

func TestEvaluateProfitable(t *testing.T) {
	// 0.4 * 100 USD reward, 10 gwei * 1M gas * 1000 USD = 10 USD cost
	decision, err := NewEvaluator().Evaluate(rngSnapshot(0.4), 5, gwei(10))
	require.NoError(t, err)
	require.True(t, decision.Act)
	require.Empty(t, decision.Reason)
	require.InDelta(t, 40.0, decision.ExpectedRewardUsd, 1e-9)
	require.InDelta(t, 10.0, decision.GasCostUsd, 1e-9)
	require.InDelta(t, 30.0, decision.ExpectedProfitUsd, 1e-9)
	require.Equal(t, helperAddress, decision.Action.To)
}

func TestEvaluateBelowThreshold(t *testing.T) {
	decision, err := NewEvaluator().Evaluate(rngSnapshot(0.05), 5, gwei(10))
	require.NoError(t, err)
	require.False(t, decision.Act)
	require.Equal(t, ReasonBelowThreshold, decision.Reason)
	require.InDelta(t, -5.0, decision.ExpectedProfitUsd, 1e-9)
}

func TestEvaluateProfitEqualToThreshold(t *testing.T) {
	decision, err := NewEvaluator().Evaluate(rngSnapshot(0.5), 50, big.NewInt(0))
	require.NoError(t, err)
	require.True(t, decision.Act)
	require.InDelta(t, 50.0, decision.ExpectedProfitUsd, 1e-9)
}

func TestEvaluateSkips(t *testing.T) {
	for _, tc := range []struct {
		name     string
		snapshot func() Snapshot
		reason   string
	}{
		{
			name: "closed auction",
			snapshot: func() Snapshot {
				s := rngSnapshot(0.4)
				s.IsAuctionOpen = false
				return s
			},
			reason: ReasonAuctionClosed,
		},
		{
			name:     "zero fraction",
			snapshot: func() Snapshot { return rngSnapshot(0) },
			reason:   ReasonZeroReward,
		},
		{
			name: "insufficient balance",
			snapshot: func() Snapshot {
				s := rngSnapshot(0.4)
				s.FeeTokenBalance = big.NewInt(1)
				return s
			},
			reason: ReasonInsufficientBalance,
		},
		{
			name: "insufficient allowance",
			snapshot: func() Snapshot {
				s := rngSnapshot(0.4)
				s.FeeTokenAllowance = nil
				return s
			},
			reason: ReasonInsufficientAllow,
		},
		{
			name: "no priced pool",
			snapshot: func() Snapshot {
				s := rngSnapshot(0.4)
				s.RewardPools = []RewardPool{pool(e18(100), 0)}
				return s
			},
			reason: ReasonPriceUnavailable,
		},
		{
			name: "no pools",
			snapshot: func() Snapshot {
				s := rngSnapshot(0.4)
				s.RewardPools = nil
				return s
			},
			reason: ReasonPriceUnavailable,
		},
		{
			name: "no native rate",
			snapshot: func() Snapshot {
				s := rngSnapshot(0.4)
				s.NativeTokenRateUsd = 0
				return s
			},
			reason: ReasonPriceUnavailable,
		},
		{
			name: "rng not complete",
			snapshot: func() Snapshot {
				s := relaySnapshot(0.4)
				s.IsRngComplete = false
				return s
			},
			reason: ReasonRngIncomplete,
		},
		{
			name: "already relayed",
			snapshot: func() Snapshot {
				s := relaySnapshot(0.4)
				s.AlreadyRelayed = true
				return s
			},
			reason: ReasonAlreadyRelayed,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := NewEvaluator().Evaluate(tc.snapshot(), 5, gwei(10))
			require.NoError(t, err)
			require.False(t, decision.Act)
			require.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestEvaluateUnsetFeeTokenIgnoresBalance(t *testing.T) {
	s := rngSnapshot(0.4)
	s.FeeTokenIsSet = false
	s.FeeTokenBalance = nil
	s.FeeTokenAllowance = nil

	decision, err := NewEvaluator().Evaluate(s, 5, gwei(10))
	require.NoError(t, err)
	require.True(t, decision.Act)
}

func TestEvaluateSkipsUnpricedPools(t *testing.T) {
	s := relaySnapshot(0.5)
	s.RewardPools = []RewardPool{pool(e18(100), 2.0), pool(e18(1_000_000), 0)}

	decision, err := NewEvaluator().Evaluate(s, 0, big.NewInt(0))
	require.NoError(t, err)
	require.True(t, decision.Act)
	require.InDelta(t, 100.0, decision.ExpectedRewardUsd, 1e-9)
}

func TestEvaluateInvalidFraction(t *testing.T) {
	for _, fraction := range []float64{1.5, -0.1, math.NaN()} {
		_, err := NewEvaluator().Evaluate(rngSnapshot(fraction), 5, gwei(10))
		require.ErrorIs(t, err, ErrFatal)
	}
}

func TestEvaluateInvalidFractionWinsOverClosedAuction(t *testing.T) {
	s := relaySnapshot(2)
	s.IsAuctionOpen = false

	_, err := NewEvaluator().Evaluate(s, 5, gwei(10))
	require.ErrorIs(t, err, ErrFatal)
}

func TestSnapshotFromRelayContext(t *testing.T) {
	relayCtx := &RelayAuctionContext{
		ChainId:             10,
		RelayIsAuctionOpen:  true,
		RngIsComplete:       true,
		RelayRewardFraction: 25e16,
		RelayLastSequenceId: 5,
		RngLastSequenceId:   5,
		RewardPool:          pool(e18(10), 1),
		NativeTokenRateUsd:  2000,
	}

	s := relayCtx.Snapshot(550_000, Action{Phase: PhaseRngRelay})
	require.Equal(t, PhaseRngRelay, s.Phase)
	require.InDelta(t, 0.25, s.RewardFraction, 1e-12)
	require.True(t, s.AlreadyRelayed)
	require.Len(t, s.RewardPools, 1)
	require.Equal(t, uint64(550_000), s.GasLimit)
}
