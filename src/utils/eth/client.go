package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

var ErrWrongChain = errors.New("rpc endpoint serves a different chain")

// Read side of a chain connection
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Everything the bot needs from a chain connection. Implemented by *ethclient.Client
type Client interface {
	Caller
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Client = (*ethclient.Client)(nil)

// Connects to the rpc endpoint and makes sure it serves the expected chain
func GetEthClient(ctx context.Context, log *logrus.Entry, rpcUri string, chainId int64) (client *ethclient.Client, err error) {
	client, err = ethclient.DialContext(ctx, rpcUri)
	if err != nil {
		log.WithError(err).Error("Cannot get ETH client")
		return
	}

	err = VerifyChainId(ctx, client, chainId)
	if err != nil {
		log.WithError(err).WithField("chain_id", chainId).Error("ETH client failed chain id check")
		client.Close()
		return nil, err
	}

	return
}

func VerifyChainId(ctx context.Context, client Client, chainId int64) (err error) {
	actual, err := client.ChainID(ctx)
	if err != nil {
		return
	}

	if actual.Cmp(big.NewInt(chainId)) != 0 {
		return fmt.Errorf("%w: expected %d, got %s", ErrWrongChain, chainId, actual.String())
	}
	return nil
}
