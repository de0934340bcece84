package oracle

import (
	"math/big"

	"github.com/solera-fi/vaultd/pkg/util"
	"github.com/solera-fi/vaultd/pkg/vault"
)

// FixedFeed always reports the same answer, stamped with the current time.
// Devnet and test use only.
type FixedFeed struct {
	Answer   *big.Int
	Decimals uint8
	Clock    util.Clock
}

func NewFixedFeed(answer *big.Int, decimals uint8) *FixedFeed {
	return &FixedFeed{Answer: answer, Decimals: decimals, Clock: util.RealClock{}}
}

func (f *FixedFeed) Latest() (vault.PriceData, error) {
	clock := f.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return vault.PriceData{
		Answer:    new(big.Int).Set(f.Answer),
		Decimals:  f.Decimals,
		UpdatedAt: clock.Now(),
	}, nil
}
