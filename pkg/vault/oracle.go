package vault

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceData is a single oracle observation. Answer follows the aggregator
// convention (signed, may be zero or negative on a broken feed) and is
// validated by the converter, not here.
type PriceData struct {
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// PriceFeed is the read capability the vault holds per registered asset.
type PriceFeed interface {
	Latest() (PriceData, error)
}

// FeedRegistry maps asset ids to price feeds. The native asset's feed is
// fixed at construction and cannot be changed afterwards; a nil native feed
// permanently disables native-asset operations on that instance.
type FeedRegistry struct {
	mu         sync.RWMutex
	nativeFeed PriceFeed
	feeds      map[common.Address]PriceFeed
}

func NewFeedRegistry(nativeFeed PriceFeed) *FeedRegistry {
	return &FeedRegistry{
		nativeFeed: nativeFeed,
		feeds:      make(map[common.Address]PriceFeed),
	}
}

// Feed returns the registered feed for an asset, if any.
func (r *FeedRegistry) Feed(asset common.Address) (PriceFeed, bool) {
	if IsNative(asset) {
		return r.nativeFeed, r.nativeFeed != nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[asset]
	return f, ok
}

// SetFeed registers or replaces a token asset's feed. The native sentinel is
// rejected: its feed is immutable post-construction.
func (r *FeedRegistry) SetFeed(asset common.Address, feed PriceFeed) error {
	if IsNative(asset) {
		return ErrZeroAsset
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[asset] = feed
	return nil
}
