package signer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"
)

type relayerInfo struct {
	Address string `json:"address"`
	ChainId int64  `json:"chainId"`
}

type relayerTransactionRequest struct {
	To        string `json:"to"`
	Data      string `json:"data"`
	Value     string `json:"value"`
	GasLimit  string `json:"gasLimit"`
	GasPrice  string `json:"gasPrice"`
	IsPrivate bool   `json:"isPrivate"`
}

type relayerTransactionResponse struct {
	TransactionId string `json:"transactionId"`
	Hash          string `json:"hash"`
}

type relayerErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Hands transactions over to a hosted relayer service which holds the key
type ManagedRelayerSigner struct {
	log        *logrus.Entry
	httpClient *resty.Client
	limiter    *rate.Limiter
	apiKey     string
	apiSecret  string
	chainId    int64
	address    common.Address

	privateChainIds []int64
}

type ManagedRelayerParams struct {
	Url       string
	ApiKey    string
	ApiSecret string
	ChainId   int64
	Timeout   time.Duration

	// Max requests per second
	RateLimit float64

	// Chains where the relayer may submit privately
	PrivateChainIds []int64
}

// Creates the signer and asks the relayer for its address
func NewManagedRelayerSigner(ctx context.Context, params ManagedRelayerParams) (self *ManagedRelayerSigner, err error) {
	if params.ApiKey == "" || params.ApiSecret == "" {
		return nil, ErrNoCredentials
	}

	self = new(ManagedRelayerSigner)
	self.log = logger.NewSublogger("managed-relayer-signer").WithField("chain_id", params.ChainId)
	self.apiKey = params.ApiKey
	self.apiSecret = params.ApiSecret
	self.chainId = params.ChainId
	self.privateChainIds = params.PrivateChainIds

	limit := rate.Limit(params.RateLimit)
	if params.RateLimit <= 0 {
		limit = rate.Inf
	}
	self.limiter = rate.NewLimiter(limit, 1)

	self.httpClient = resty.New().
		SetBaseURL(strings.TrimSuffix(params.Url, "/")).
		SetTimeout(params.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	err = self.fetchIdentity(ctx)
	if err != nil {
		return nil, err
	}

	return
}

func (self *ManagedRelayerSigner) Address() common.Address {
	return self.address
}

func (self *ManagedRelayerSigner) ChainId() int64 {
	return self.chainId
}

func (self *ManagedRelayerSigner) CanSubmitPrivate() bool {
	return slices.Contains(self.privateChainIds, self.chainId)
}

// Hex HMAC-SHA256 of the timestamp and body, keyed with the api secret
func (self *ManagedRelayerSigner) signRequest(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(self.apiSecret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (self *ManagedRelayerSigner) request(ctx context.Context, body []byte) (req *resty.Request, err error) {
	err = self.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req = self.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", self.apiKey).
		SetHeader("X-Api-Timestamp", timestamp).
		SetHeader("X-Api-Signature", self.signRequest(timestamp, body)).
		SetError(&relayerErrorResponse{}).
		ForceContentType("application/json")
	if len(body) > 0 {
		req.SetBody(body)
	}
	return
}

func (self *ManagedRelayerSigner) fetchIdentity(ctx context.Context) (err error) {
	req, err := self.request(ctx, nil)
	if err != nil {
		return
	}

	resp, err := req.SetResult(&relayerInfo{}).Get("/relayer")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: relayer status %d", ErrUnavailable, resp.StatusCode())
	}

	info, ok := resp.Result().(*relayerInfo)
	if !ok || info == nil || !common.IsHexAddress(info.Address) {
		return fmt.Errorf("%w: relayer returned no address", ErrUnavailable)
	}

	if info.ChainId != 0 && info.ChainId != self.chainId {
		return fmt.Errorf("%w: relayer serves chain %d, expected %d", ErrUnavailable, info.ChainId, self.chainId)
	}

	self.address = common.HexToAddress(info.Address)
	return
}

func (self *ManagedRelayerSigner) send(ctx context.Context, tx *UnsignedTransaction, private bool) (hash common.Hash, err error) {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	gasPrice := tx.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}

	body, err := json.Marshal(relayerTransactionRequest{
		To:        tx.To.Hex(),
		Data:      hexutil.Encode(tx.Data),
		Value:     value.String(),
		GasLimit:  strconv.FormatUint(tx.GasLimit, 10),
		GasPrice:  gasPrice.String(),
		IsPrivate: private,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrRejected, err.Error())
	}

	req, err := self.request(ctx, body)
	if err != nil {
		return
	}

	resp, err := req.SetResult(&relayerTransactionResponse{}).Post("/txs")
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		return common.Hash{}, fmt.Errorf("%w: relayer status %d", ErrUnavailable, resp.StatusCode())
	}

	if !resp.IsSuccess() {
		msg := ""
		if e, ok := resp.Error().(*relayerErrorResponse); ok && e != nil {
			msg = e.Message + e.Error
		}
		return common.Hash{}, fmt.Errorf("%w: relayer status %d %s", ErrRejected, resp.StatusCode(), msg)
	}

	result, ok := resp.Result().(*relayerTransactionResponse)
	if !ok || result == nil || result.Hash == "" {
		return common.Hash{}, fmt.Errorf("%w: relayer returned no transaction hash", ErrUnavailable)
	}

	hash = common.HexToHash(result.Hash)
	self.log.WithField("tx_hash", hash.Hex()).
		WithField("transaction_id", result.TransactionId).
		WithField("private", private).
		Debug("Transaction handed to relayer")
	return
}

func (self *ManagedRelayerSigner) SubmitTransaction(ctx context.Context, tx *UnsignedTransaction) (common.Hash, error) {
	return self.send(ctx, tx, false)
}

func (self *ManagedRelayerSigner) SubmitPrivateTransaction(ctx context.Context, tx *UnsignedTransaction) (common.Hash, error) {
	if !self.CanSubmitPrivate() {
		return common.Hash{}, fmt.Errorf("%w: private submission not supported on chain %d", ErrUnavailable, self.chainId)
	}
	return self.send(ctx, tx, true)
}
