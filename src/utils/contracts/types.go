package contracts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract types used by the draw auction
const (
	TypeRngAuction                          = "RngAuction"
	TypeChainlinkVRFV2DirectRngAuctionHelper = "ChainlinkVRFV2DirectRngAuctionHelper"
	TypeRngRelayAuction                     = "RngRelayAuction"
	TypeRngAuctionRelayerDirect             = "RngAuctionRelayerDirect"
	TypePrizePool                           = "PrizePool"
	TypeMarketRate                          = "MarketRate"
)

type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (self Version) String() string {
	return fmt.Sprintf("%d.%d.%d", self.Major, self.Minor, self.Patch)
}

type UnderlyingAsset struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

type TokenExtensions struct {
	UnderlyingAsset *UnderlyingAsset `json:"underlyingAsset,omitempty"`
}

type TokenData struct {
	ChainId    int64           `json:"chainId"`
	Address    string          `json:"address"`
	Name       string          `json:"name"`
	Decimals   uint8           `json:"decimals"`
	Symbol     string          `json:"symbol"`
	Extensions TokenExtensions `json:"extensions"`
}

type ContractData struct {
	Address string          `json:"address"`
	ChainId int64           `json:"chainId"`
	Type    string          `json:"type"`
	Abi     json.RawMessage `json:"abi,omitempty"`
	Version Version         `json:"version"`
	Tokens  []TokenData     `json:"tokens,omitempty"`
}

func (self *ContractData) GetAddress() common.Address {
	return common.HexToAddress(self.Address)
}

// ABI carried in the blob, or the fallback if the blob doesn't have one
func (self *ContractData) GetAbi(fallback *abi.ABI) (*abi.ABI, error) {
	raw := strings.TrimSpace(string(self.Abi))
	if raw == "" || raw == "null" || raw == "[]" {
		return fallback, nil
	}

	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi of %s: %w", self.Type, err)
	}
	return &parsed, nil
}

// Set of contracts deployed on one chain. Never modified after download
type ContractsBlob struct {
	Name      string         `json:"name"`
	Version   Version        `json:"version"`
	Timestamp string         `json:"timestamp"`
	Contracts []ContractData `json:"contracts"`
}

// First contract of the given type deployed on the chain
func (self *ContractsBlob) Find(contractType string, chainId int64) (*ContractData, bool) {
	if self == nil {
		return nil, false
	}
	for i := range self.Contracts {
		c := &self.Contracts[i]
		if c.Type == contractType && (c.ChainId == 0 || c.ChainId == chainId) {
			return c, true
		}
	}
	return nil, false
}
