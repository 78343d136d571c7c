package draw_auction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/generationsoftware/autotasks/src/utils/signer"
	"github.com/sirupsen/logrus"
)

// Builds, prices and submits transactions
type Dispatcher struct {
	config *config.Config
	log    *logrus.Entry

	priorityBuffer *big.Int
}

func NewDispatcher(config *config.Config) (self *Dispatcher) {
	self = new(Dispatcher)
	self.config = config
	self.log = logger.NewSublogger("dispatcher")
	self.priorityBuffer = big.NewInt(config.DrawAuction.PriorityBufferWei)
	return
}

// Call data of the action
func (self *Dispatcher) BuildCallData(action Action) (data []byte, err error) {
	switch action.Phase {
	case PhaseRngStart:
		return eth.RngAuctionHelperAbi.Pack("transferFeeAndStartRngRequest", action.RewardRecipient)
	case PhaseRngRelay:
		return eth.RngAuctionRelayerAbi.Pack("relay", action.RngRelayAuction, action.RewardRecipient)
	}
	return nil, fmt.Errorf("%w: unknown phase %q", ErrFatal, action.Phase)
}

// Submits exactly one transaction for the action and returns without waiting for confirmation.
// Private submission falls back to the public mempool when the signer can't do it on this chain.
func (self *Dispatcher) Dispatch(ctx context.Context, action Action, s signer.Signer, gasPriceEstimate *big.Int, useFlashbots bool) (handle *TransactionHandle, err error) {
	log := self.log.WithField("chainId", action.ChainId).WithField("phase", action.Phase)

	if s.ChainId() != action.ChainId {
		return nil, fmt.Errorf("%w: signer bound to chain %d, action on chain %d", ErrSubmissionFailed, s.ChainId(), action.ChainId)
	}

	data, err := self.BuildCallData(action)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	gasPrice := new(big.Int).Add(gasPriceOrZero(gasPriceEstimate), self.priorityBuffer)

	tx := &signer.UnsignedTransaction{
		To:       action.To,
		Data:     data,
		Value:    new(big.Int),
		GasLimit: action.GasLimit,
		GasPrice: gasPrice,
	}

	private := false
	if useFlashbots {
		if p, ok := s.(signer.PrivateSigner); ok && p.CanSubmitPrivate() {
			private = true
		} else {
			log.Info("Private submission unavailable on this chain, sending publicly")
		}
	}

	if self.config.DrawAuction.SubmissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.config.DrawAuction.SubmissionTimeout)
		defer cancel()
	}

	handle = &TransactionHandle{
		ChainId:  action.ChainId,
		Phase:    action.Phase,
		Private:  private,
		GasPrice: gasPrice,
		GasLimit: action.GasLimit,
	}

	if private {
		handle.Hash, err = s.(signer.PrivateSigner).SubmitPrivateTransaction(ctx, tx)
	} else {
		handle.Hash, err = s.SubmitTransaction(ctx, tx)
	}
	if err != nil {
		log.WithError(err).WithField("private", private).Error("Failed to submit transaction")
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	log.WithField("txHash", handle.Hash.Hex()).
		WithField("private", private).
		WithField("gasPriceGwei", toGwei(gasPrice)).
		WithField("gasLimit", action.GasLimit).
		Info("Transaction submitted")
	return
}
