// Package oracle provides the price feed implementations the daemon wires
// into the vault's feed registry.
package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/solera-fi/vaultd/pkg/util"
	"github.com/solera-fi/vaultd/pkg/vault"
)

// ErrNoRound is returned before the first answer has been pushed.
var ErrNoRound = errors.New("oracle: no round data")

// ManualFeed is a push-style feed: an operator (or the admin API) sets the
// latest answer, and reads return it with the timestamp of the push.
type ManualFeed struct {
	mu        sync.RWMutex
	answer    *big.Int
	decimals  uint8
	updatedAt time.Time
	clock     util.Clock
}

func NewManualFeed(decimals uint8, clock util.Clock) *ManualFeed {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &ManualFeed{decimals: decimals, clock: clock}
}

// Set records a new answer stamped with the current time.
func (f *ManualFeed) Set(answer *big.Int) {
	f.SetAt(answer, f.clock.Now())
}

// SetAt records a new answer with an explicit observation time.
func (f *ManualFeed) SetAt(answer *big.Int, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = new(big.Int).Set(answer)
	f.updatedAt = at
}

func (f *ManualFeed) Latest() (vault.PriceData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.answer == nil {
		return vault.PriceData{}, ErrNoRound
	}
	return vault.PriceData{
		Answer:    new(big.Int).Set(f.answer),
		Decimals:  f.decimals,
		UpdatedAt: f.updatedAt,
	}, nil
}
