package vault

import "github.com/ethereum/go-ethereum/common"

// DecimalsSource is a capability that may know a token's declared unit
// precision. The second return is false when the token does not expose one
// (missing method, failed call); callers then fall back to the default.
type DecimalsSource interface {
	TryDecimals(asset common.Address) (uint8, bool)
}

// DecimalsResolver resolves the unit precision of any asset.
// Native asset: fixed 18. Token asset: queried, defaulting to 18.
type DecimalsResolver struct {
	src DecimalsSource // may be nil
}

func NewDecimalsResolver(src DecimalsSource) DecimalsResolver {
	return DecimalsResolver{src: src}
}

func (r DecimalsResolver) Resolve(asset common.Address) uint8 {
	if IsNative(asset) {
		return NativeDecimals
	}
	if r.src != nil {
		if d, ok := r.src.TryDecimals(asset); ok {
			return d
		}
	}
	return DefaultTokenDecimals
}
