package signer

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// Transaction refused by the node or the relayer, resending it won't help
	ErrRejected = errors.New("transaction rejected")

	// Node or relayer couldn't be reached
	ErrUnavailable = errors.New("signer unavailable")

	// No usable key material was configured
	ErrNoCredentials = errors.New("no private key nor relayer credentials")
)

// Transaction prepared by the bot, signed and sent by a Signer
type UnsignedTransaction struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// Identity used to sign and send transactions on a single chain
type Signer interface {
	Address() common.Address
	ChainId() int64
	SubmitTransaction(ctx context.Context, tx *UnsignedTransaction) (common.Hash, error)
}

// Signers able to bypass the public mempool
type PrivateSigner interface {
	Signer
	CanSubmitPrivate() bool
	SubmitPrivateTransaction(ctx context.Context, tx *UnsignedTransaction) (common.Hash, error)
}

var rejectionMessages = []string{
	"nonce too low",
	"nonce too high",
	"underpriced",
	"insufficient funds",
	"already known",
	"exceeds block gas limit",
	"intrinsic gas too low",
	"execution reverted",
	"gas limit reached",
}

// Tells apart transactions refused by the node from connectivity problems
func isRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
