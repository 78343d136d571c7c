package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/sirupsen/logrus"
)

// Signs transactions with a key held in memory and broadcasts them through the chain's rpc
type LocalKeySigner struct {
	log       *logrus.Entry
	key       *ecdsa.PrivateKey
	address   common.Address
	chainId   int64
	client    eth.Client
	flashbots *FlashbotsClient
}

func NewLocalKeySigner(privateKeyHex string, chainId int64, client eth.Client) (self *LocalKeySigner, err error) {
	self = new(LocalKeySigner)
	self.log = logger.NewSublogger("local-key-signer").WithField("chain_id", chainId)
	self.chainId = chainId
	self.client = client

	self.key, err = ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	self.address = crypto.PubkeyToAddress(self.key.PublicKey)

	return
}

// Enables private submission through Flashbots Protect
func (self *LocalKeySigner) WithFlashbots(flashbots *FlashbotsClient) *LocalKeySigner {
	self.flashbots = flashbots
	return self
}

func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if h == "" {
		return nil, ErrNoCredentials
	}
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		// Don't include the error, it may echo key material
		return nil, fmt.Errorf("%w: malformed private key", ErrNoCredentials)
	}
	return key, nil
}

func (self *LocalKeySigner) Address() common.Address {
	return self.address
}

func (self *LocalKeySigner) ChainId() int64 {
	return self.chainId
}

func (self *LocalKeySigner) CanSubmitPrivate() bool {
	return self.flashbots != nil && self.flashbots.Supports(self.chainId)
}

func (self *LocalKeySigner) sign(ctx context.Context, tx *UnsignedTransaction) (signed *types.Transaction, err error) {
	nonce, err := self.client.PendingNonceAt(ctx, self.address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get nonce: %s", ErrUnavailable, err.Error())
	}

	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}

	to := tx.To
	signed, err = types.SignNewTx(self.key, types.LatestSignerForChainID(big.NewInt(self.chainId)), &types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      tx.GasLimit,
		GasPrice: tx.GasPrice,
		Data:     tx.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign: %s", ErrRejected, err.Error())
	}
	return
}

func (self *LocalKeySigner) SubmitTransaction(ctx context.Context, tx *UnsignedTransaction) (hash common.Hash, err error) {
	signed, err := self.sign(ctx, tx)
	if err != nil {
		return
	}

	err = self.client.SendTransaction(ctx, signed)
	if err != nil {
		if isRejection(err) {
			return common.Hash{}, fmt.Errorf("%w: %s", ErrRejected, err.Error())
		}
		return common.Hash{}, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	self.log.WithField("tx_hash", signed.Hash().Hex()).Debug("Transaction broadcasted")
	return signed.Hash(), nil
}

func (self *LocalKeySigner) SubmitPrivateTransaction(ctx context.Context, tx *UnsignedTransaction) (hash common.Hash, err error) {
	if !self.CanSubmitPrivate() {
		return common.Hash{}, fmt.Errorf("%w: private submission not supported on chain %d", ErrUnavailable, self.chainId)
	}

	signed, err := self.sign(ctx, tx)
	if err != nil {
		return
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrRejected, err.Error())
	}

	hash, err = self.flashbots.SendPrivateTransaction(ctx, raw)
	if err != nil {
		return
	}

	self.log.WithField("tx_hash", hash.Hex()).Debug("Transaction sent privately")
	return
}
