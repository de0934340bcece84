package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeAsset is the sentinel asset id for the chain's intrinsic value unit.
// Token assets are identified by their contract address.
var NativeAsset = common.Address{}

const (
	// NativeDecimals is the fixed unit precision of the native asset.
	NativeDecimals uint8 = 18

	// DefaultTokenDecimals is assumed when a token's own precision
	// cannot be queried.
	DefaultTokenDecimals uint8 = 18

	// Usd6Decimals is the precision of the vault's common value unit:
	// USD with six decimal places, stored as an integer.
	Usd6Decimals uint8 = 6
)

// IsNative reports whether asset is the native sentinel.
func IsNative(asset common.Address) bool {
	return asset == NativeAsset
}

// Pow10 returns 10^n as a uint256.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}
