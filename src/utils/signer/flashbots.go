package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

type rpcRequest struct {
	JsonRpc string        `json:"jsonrpc"`
	Id      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type privateTransactionParams struct {
	Tx string `json:"tx"`
}

// Sends signed transactions to Flashbots Protect, so they never reach the public mempool
type FlashbotsClient struct {
	log        *logrus.Entry
	httpClient *resty.Client
	url        string
	chainIds   []int64

	// Identifies the searcher, requests are signed with it
	authKey     *ecdsa.PrivateKey
	authAddress common.Address
}

func NewFlashbotsClient(url string, chainIds []int64, authKey *ecdsa.PrivateKey, timeout time.Duration) (self *FlashbotsClient) {
	self = new(FlashbotsClient)
	self.log = logger.NewSublogger("flashbots")
	self.url = url
	self.chainIds = chainIds
	self.authKey = authKey
	self.authAddress = crypto.PubkeyToAddress(authKey.PublicKey)

	self.httpClient = resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return
}

func (self *FlashbotsClient) Supports(chainId int64) bool {
	return self.url != "" && slices.Contains(self.chainIds, chainId)
}

// Value of the X-Flashbots-Signature header: address:signature of the body's keccak
func (self *FlashbotsClient) signBody(body []byte) (string, error) {
	digest := hexutil.Encode(crypto.Keccak256(body))
	sig, err := crypto.Sign(accounts.TextHash([]byte(digest)), self.authKey)
	if err != nil {
		return "", err
	}
	return self.authAddress.Hex() + ":" + hexutil.Encode(sig), nil
}

func (self *FlashbotsClient) SendPrivateTransaction(ctx context.Context, rawTx []byte) (hash common.Hash, err error) {
	body, err := json.Marshal(rpcRequest{
		JsonRpc: "2.0",
		Id:      1,
		Method:  "eth_sendPrivateTransaction",
		Params:  []interface{}{privateTransactionParams{Tx: hexutil.Encode(rawTx)}},
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrRejected, err.Error())
	}

	signature, err := self.signBody(body)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to sign request: %s", ErrRejected, err.Error())
	}

	resp, err := self.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Flashbots-Signature", signature).
		SetBody(body).
		SetResult(&rpcResponse{}).
		ForceContentType("application/json").
		Post(self.url)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	if resp.StatusCode() >= 500 {
		return common.Hash{}, fmt.Errorf("%w: flashbots status %d", ErrUnavailable, resp.StatusCode())
	}

	result, ok := resp.Result().(*rpcResponse)
	if !ok || result == nil {
		return common.Hash{}, fmt.Errorf("%w: unexpected flashbots response, status %d", ErrUnavailable, resp.StatusCode())
	}

	if result.Error != nil {
		return common.Hash{}, fmt.Errorf("%w: flashbots error %d: %s", ErrRejected, result.Error.Code, result.Error.Message)
	}

	if !resp.IsSuccess() {
		return common.Hash{}, fmt.Errorf("%w: flashbots status %d", ErrRejected, resp.StatusCode())
	}

	var hexHash string
	err = json.Unmarshal(result.Result, &hexHash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: malformed flashbots result: %s", ErrUnavailable, err.Error())
	}

	return common.HexToHash(hexHash), nil
}
