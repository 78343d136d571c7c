package draw_auction

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/signer"
	"github.com/stretchr/testify/require"
)

func relayAction(chainId int64) Action {
	state := defaultRelayState(chainId)
	return Action{
		Phase:           PhaseRngRelay,
		ChainId:         chainId,
		To:              state.relayer,
		RewardRecipient: recipientAddress,
		RngRelayAuction: state.relayAuction,
		GasLimit:        550_000,
	}
}

func TestBuildCallDataRngStart(t *testing.T) {
	data, err := NewDispatcher(testConfig()).BuildCallData(Action{Phase: PhaseRngStart, RewardRecipient: recipientAddress})
	require.NoError(t, err)

	method, err := eth.RngAuctionHelperAbi.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "transferFeeAndStartRngRequest", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, recipientAddress, args[0])
}

func TestBuildCallDataRelay(t *testing.T) {
	action := relayAction(10)
	data, err := NewDispatcher(testConfig()).BuildCallData(action)
	require.NoError(t, err)

	method, err := eth.RngAuctionRelayerAbi.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "relay", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, action.RngRelayAuction, args[0])
	require.Equal(t, recipientAddress, args[1])
}

func TestBuildCallDataUnknownPhase(t *testing.T) {
	_, err := NewDispatcher(testConfig()).BuildCallData(Action{Phase: "draw_award"})
	require.ErrorIs(t, err, ErrFatal)
}

func TestDispatchPublic(t *testing.T) {
	s := newFakeSigner(10)
	action := relayAction(10)

	handle, err := NewDispatcher(testConfig()).Dispatch(context.Background(), action, s, gwei(10), false)
	require.NoError(t, err)
	require.False(t, handle.Private)
	require.Equal(t, int64(10), handle.ChainId)
	require.Equal(t, PhaseRngRelay, handle.Phase)

	// Estimate plus the 1 gwei priority buffer
	require.Equal(t, 0, handle.GasPrice.Cmp(gwei(11)))

	require.Len(t, s.public, 1)
	require.Empty(t, s.privately)

	tx := s.public[0]
	require.Equal(t, action.To, tx.To)
	require.Equal(t, uint64(550_000), tx.GasLimit)
	require.Equal(t, 0, tx.GasPrice.Cmp(gwei(11)))
	require.Zero(t, tx.Value.Sign())
}

func TestDispatchPrivate(t *testing.T) {
	s := newFakeSigner(1)
	s.private = true

	handle, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(1), s, gwei(10), true)
	require.NoError(t, err)
	require.True(t, handle.Private)
	require.Len(t, s.privately, 1)
	require.Empty(t, s.public)
}

func TestDispatchPrivateUnsupportedOnChain(t *testing.T) {
	s := newFakeSigner(10)
	s.private = false

	handle, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(10), s, gwei(10), true)
	require.NoError(t, err)
	require.False(t, handle.Private)
	require.Len(t, s.public, 1)
}

func TestDispatchPrivateWithoutCapability(t *testing.T) {
	inner := newFakeSigner(10)

	handle, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(10), &publicOnlySigner{inner: inner}, gwei(10), true)
	require.NoError(t, err)
	require.False(t, handle.Private)
	require.Len(t, inner.public, 1)
}

func TestDispatchNilEstimate(t *testing.T) {
	handle, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(10), newFakeSigner(10), nil, false)
	require.NoError(t, err)
	require.Equal(t, 0, handle.GasPrice.Cmp(big.NewInt(1_000_000_000)))
}

func TestDispatchRejected(t *testing.T) {
	s := newFakeSigner(10)
	s.err = signer.ErrRejected

	_, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(10), s, gwei(10), false)
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.ErrorIs(t, err, signer.ErrRejected)
}

func TestDispatchUnavailable(t *testing.T) {
	s := newFakeSigner(1)
	s.private = true
	s.err = errors.Join(signer.ErrUnavailable, errors.New("bad gateway"))

	_, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(1), s, gwei(10), true)
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.ErrorIs(t, err, signer.ErrUnavailable)
}

func TestDispatchChainMismatch(t *testing.T) {
	s := newFakeSigner(8453)

	_, err := NewDispatcher(testConfig()).Dispatch(context.Background(), relayAction(10), s, gwei(10), false)
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.Zero(t, s.submissions())
}
