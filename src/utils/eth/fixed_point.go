package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// Number of decimals in UD2x18 fractions returned by the auction contracts
const FractionDecimals = 18

// Converts a fixed point integer into a float, e.g. (150000000, 8) -> 1.5
func ParseFixedPoint(value *big.Int, decimals int) float64 {
	if value == nil {
		return 0
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	result, _ := new(big.Float).Quo(new(big.Float).SetInt(value), divisor).Float64()
	return result
}

// Converts a UD2x18 fraction into a float
func ParseFraction(value uint64) float64 {
	return ParseFixedPoint(new(big.Int).SetUint64(value), FractionDecimals)
}

// Multiplies amount by a UD2x18 fraction, rounding down
func MulFraction(amount *big.Int, fraction uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	result := new(big.Int).Mul(amount, new(big.Int).SetUint64(fraction))
	return result.Quo(result, new(big.Int).Exp(big.NewInt(10), big.NewInt(FractionDecimals), nil))
}

// Multiplies amount by (1 - fraction), fraction is UD2x18
func MulRemainingFraction(amount *big.Int, fraction uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Sub(amount, MulFraction(amount, fraction))
}

func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return ether
}

func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(params.GWei))
}
