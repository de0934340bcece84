package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AssetBank moves value between account holders and vault custody. It is the
// external interaction of every deposit and withdrawal: an opaque, fallible
// call with no timeout semantics of its own. Implementations may call back
// into the vault; the reentrancy guard rejects such calls.
type AssetBank interface {
	// Pull takes amount of asset from holder into custody (token deposits).
	Pull(asset, holder common.Address, amount *uint256.Int) error

	// Push releases amount of asset from custody to holder (withdrawals).
	Push(asset, holder common.Address, amount *uint256.Int) error
}
