// Package ethtest provides an in-memory chain that answers Multicall3 batches, for tests
package ethtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"go.uber.org/atomic"
)

var ErrReverted = errors.New("execution reverted")

// Answers a view call, returning an error makes the call revert
type Responder func(args []interface{}) ([]interface{}, error)

type contract struct {
	abis    []*abi.ABI
	methods map[string]Responder
}

func (self *contract) method(id []byte) (*abi.Method, error) {
	for _, a := range self.abis {
		if m, err := a.MethodById(id); err == nil {
			return m, nil
		}
	}
	return nil, errors.New("unknown method")
}

// Chain with a Multicall3 deployment and a set of mocked contracts
type FakeChain struct {
	mtx sync.Mutex

	ChainId   int64
	GasPrice  *big.Int
	Multicall common.Address
	Nonce     uint64

	contracts map[common.Address]*contract

	// Returned by CallContract instead of executing the batch
	CallErr error

	// CallContract waits for the context to end, like an endpoint that never answers
	BlockCalls bool

	// Number of eth_call round trips
	Calls atomic.Int32

	Sent []*types.Transaction

	Closed atomic.Bool
}

func NewFakeChain(chainId int64, multicall common.Address) *FakeChain {
	return &FakeChain{
		ChainId:   chainId,
		GasPrice:  big.NewInt(10_000_000_000),
		Multicall: multicall,
		contracts: make(map[common.Address]*contract),
	}
}

// Registers the answer of a view method
func (self *FakeChain) On(address common.Address, contractAbi *abi.ABI, method string, responder Responder) *FakeChain {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	c, ok := self.contracts[address]
	if !ok {
		c = &contract{methods: make(map[string]Responder)}
		self.contracts[address] = c
	}
	if !slices.Contains(c.abis, contractAbi) {
		c.abis = append(c.abis, contractAbi)
	}
	c.methods[method] = responder
	return self
}

// Registers a method that always returns the same values
func (self *FakeChain) Returns(address common.Address, contractAbi *abi.ABI, method string, values ...interface{}) *FakeChain {
	return self.On(address, contractAbi, method, func([]interface{}) ([]interface{}, error) {
		return values, nil
	})
}

func (self *FakeChain) SetCallErr(err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.CallErr = err
}

func (self *FakeChain) Close() {
	self.Closed.Store(true)
}

func (self *FakeChain) SetBlockCalls(v bool) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.BlockCalls = v
}

func (self *FakeChain) call(call eth.Call3) (out []byte, err error) {
	c, ok := self.contracts[call.Target]
	if !ok {
		return nil, fmt.Errorf("%w: no contract at %s", ErrReverted, call.Target.Hex())
	}
	if len(call.CallData) < 4 {
		return nil, ErrReverted
	}

	method, err := c.method(call.CallData[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReverted, err)
	}

	responder, ok := c.methods[method.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s not mocked", ErrReverted, method.Name)
	}

	args, err := method.Inputs.Unpack(call.CallData[4:])
	if err != nil {
		return nil, err
	}

	values, err := responder(args)
	if err != nil {
		return nil, err
	}

	return method.Outputs.Pack(values...)
}

func (self *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	self.Calls.Inc()

	self.mtx.Lock()
	blocked := self.BlockCalls
	self.mtx.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.CallErr != nil {
		return nil, self.CallErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if msg.To == nil || *msg.To != self.Multicall {
		return nil, errors.New("only multicall batches are supported")
	}

	method, err := eth.Multicall3Abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]eth.Call3)).(*[]eth.Call3)

	results := make([]eth.Result3, 0, len(calls))
	for _, call := range calls {
		out, err := self.call(call)
		if err != nil {
			if !call.AllowFailure {
				return nil, fmt.Errorf("%w: %w", ErrReverted, err)
			}
			results = append(results, eth.Result3{Success: false, ReturnData: []byte{}})
			continue
		}
		results = append(results, eth.Result3{Success: true, ReturnData: out})
	}

	return method.Outputs.Pack(results)
}

func (self *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(self.ChainId), nil
}

func (self *FakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.CallErr != nil {
		return nil, self.CallErr
	}
	return new(big.Int).Set(self.GasPrice), nil
}

func (self *FakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.Nonce, nil
}

func (self *FakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.Sent = append(self.Sent, tx)
	self.Nonce++
	return nil
}
