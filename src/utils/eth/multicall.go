package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrCallNotFound = errors.New("call not found in multicall results")
	ErrCallFailed   = errors.New("call failed")
)

// Input of Multicall3.aggregate3
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Output of Multicall3.aggregate3
type Result3 struct {
	Success    bool
	ReturnData []byte
}

type call struct {
	key      string
	abi      *abi.ABI
	method   string
	call3    Call3
	packErr  error
	optional bool
}

// Batches many view calls into a single eth_call to the Multicall3 contract.
// All calls observe the same block.
type Multicall struct {
	caller  Caller
	address common.Address
	calls   []*call
	keys    map[string]struct{}

	// Zero means the round trip is bound only by the caller's context
	timeout time.Duration
}

func NewMulticall(caller Caller, address common.Address) (self *Multicall) {
	self = new(Multicall)
	self.caller = caller
	self.address = address
	self.keys = make(map[string]struct{})
	return
}

// Adds a call that must succeed, otherwise the whole batch fails
func (self *Multicall) Add(key string, target common.Address, contractAbi *abi.ABI, method string, args ...interface{}) *Multicall {
	return self.add(key, target, contractAbi, method, false, args...)
}

// Adds a call that may revert without failing the batch
func (self *Multicall) AddOptional(key string, target common.Address, contractAbi *abi.ABI, method string, args ...interface{}) *Multicall {
	return self.add(key, target, contractAbi, method, true, args...)
}

func (self *Multicall) add(key string, target common.Address, contractAbi *abi.ABI, method string, optional bool, args ...interface{}) *Multicall {
	c := &call{
		key:      key,
		abi:      contractAbi,
		method:   method,
		optional: optional,
	}

	if _, ok := self.keys[key]; ok {
		c.packErr = fmt.Errorf("duplicated multicall key %s", key)
	} else {
		c.call3.CallData, c.packErr = contractAbi.Pack(method, args...)
	}
	c.call3.Target = target
	c.call3.AllowFailure = optional

	self.keys[key] = struct{}{}
	self.calls = append(self.calls, c)
	return self
}

func (self *Multicall) WithTimeout(timeout time.Duration) *Multicall {
	self.timeout = timeout
	return self
}

func (self *Multicall) Len() int {
	return len(self.calls)
}

// Sends all calls in one round trip and decodes the results
func (self *Multicall) Execute(ctx context.Context) (results MulticallResults, err error) {
	results = make(MulticallResults, len(self.calls))
	if len(self.calls) == 0 {
		return
	}

	calls := make([]Call3, 0, len(self.calls))
	for _, c := range self.calls {
		if c.packErr != nil {
			return nil, fmt.Errorf("failed to pack %s: %w", c.key, c.packErr)
		}
		calls = append(calls, c.call3)
	}

	data, err := Multicall3Abi.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack aggregate3: %w", err)
	}

	if self.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.timeout)
		defer cancel()
	}

	raw, err := self.caller.CallContract(ctx, ethereum.CallMsg{To: &self.address, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	out, err := Multicall3Abi.Unpack("aggregate3", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack aggregate3: %w", err)
	}
	if len(out) != 1 {
		return nil, errors.New("unexpected aggregate3 output")
	}

	returned := *abi.ConvertType(out[0], new([]Result3)).(*[]Result3)
	if len(returned) != len(self.calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(returned), len(self.calls))
	}

	for i, c := range self.calls {
		result := &CallResult{Success: returned[i].Success}
		if result.Success {
			result.Values, err = c.abi.Unpack(c.method, returned[i].ReturnData)
			if err != nil {
				if !c.optional {
					return nil, fmt.Errorf("failed to unpack %s: %w", c.key, err)
				}
				// Optional calls that return garbage are treated as reverted
				result = &CallResult{}
				err = nil
			}
		}
		results[c.key] = result
	}

	return
}

type CallResult struct {
	Success bool
	Values  []interface{}
}

type MulticallResults map[string]*CallResult

func (self MulticallResults) value(key string, idx int) (v interface{}, err error) {
	result, ok := self[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCallNotFound, key)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrCallFailed, key)
	}
	if len(result.Values) <= idx {
		return nil, fmt.Errorf("no output %d for %s", idx, key)
	}
	return result.Values[idx], nil
}

// True if the call was made and didn't revert
func (self MulticallResults) Succeeded(key string) bool {
	result, ok := self[key]
	return ok && result.Success
}

func (self MulticallResults) Value(key string, idx int) (interface{}, error) {
	return self.value(key, idx)
}

func (self MulticallResults) BigInt(key string) (*big.Int, error) {
	v, err := self.value(key, 0)
	if err != nil {
		return nil, err
	}
	out, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s is %T, not *big.Int", key, v)
	}
	return out, nil
}

func (self MulticallResults) Bool(key string) (bool, error) {
	v, err := self.value(key, 0)
	if err != nil {
		return false, err
	}
	out, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s is %T, not bool", key, v)
	}
	return out, nil
}

// Works with all unsigned integer widths up to 64 bits
func (self MulticallResults) Uint64(key string) (uint64, error) {
	v, err := self.value(key, 0)
	if err != nil {
		return 0, err
	}
	switch out := v.(type) {
	case uint8:
		return uint64(out), nil
	case uint16:
		return uint64(out), nil
	case uint32:
		return uint64(out), nil
	case uint64:
		return out, nil
	}
	return 0, fmt.Errorf("%s is %T, not an unsigned integer", key, v)
}

func (self MulticallResults) String(key string) (string, error) {
	v, err := self.value(key, 0)
	if err != nil {
		return "", err
	}
	out, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is %T, not string", key, v)
	}
	return out, nil
}

func (self MulticallResults) Address(key string) (common.Address, error) {
	v, err := self.value(key, 0)
	if err != nil {
		return common.Address{}, err
	}
	out, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s is %T, not address", key, v)
	}
	return out, nil
}
