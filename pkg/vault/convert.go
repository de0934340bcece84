package vault

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/solera-fi/vaultd/pkg/util"
)

// Converter turns raw asset amounts into USD6 values via the feed registry
// and decimals resolver. It is pure with respect to ledger state: the only
// external effect is the oracle read.
type Converter struct {
	feeds    *FeedRegistry
	decimals DecimalsResolver

	// maxAge arms the staleness check when nonzero. The default (zero)
	// leaves the check dormant: any observation timestamp is accepted.
	maxAge time.Duration
	clock  util.Clock
}

func NewConverter(feeds *FeedRegistry, decimals DecimalsResolver, maxAge time.Duration, clock util.Clock) *Converter {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Converter{feeds: feeds, decimals: decimals, maxAge: maxAge, clock: clock}
}

// ToUsd6 converts amount of asset into the vault's USD6 unit.
//
// Normalization truncates before multiplying: the raw amount is divided by
// 10^assetDecimals and the raw price by 10^priceDecimals as integers, then
// the whole-unit quotients are multiplied and scaled to six decimals. Small
// amounts and low-precision prices truncate to zero; that is the accounting
// rule, not an artifact.
func (c *Converter) ToUsd6(asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return uint256.NewInt(0), nil
	}

	feed, ok := c.feeds.Feed(asset)
	if !ok {
		return nil, ErrUnknownAsset
	}

	pd, err := feed.Latest()
	if err != nil {
		return nil, fmt.Errorf("vault: oracle read: %w", err)
	}
	if pd.Answer == nil || pd.Answer.Sign() <= 0 {
		return nil, ErrNonPositivePrice
	}
	if c.maxAge > 0 && pd.UpdatedAt.Add(c.maxAge).Before(c.clock.Now()) {
		return nil, ErrStalePrice
	}

	price, overflow := uint256.FromBig(pd.Answer)
	if overflow {
		return nil, ErrValueOverflow
	}

	assetDec := c.decimals.Resolve(asset)

	wholeUnits := new(uint256.Int).Div(amount, Pow10(assetDec))
	wholePrice := new(uint256.Int).Div(price, Pow10(pd.Decimals))

	v := new(uint256.Int)
	if _, overflow = v.MulOverflow(wholeUnits, wholePrice); overflow {
		return nil, ErrValueOverflow
	}
	if _, overflow = v.MulOverflow(v, Pow10(Usd6Decimals)); overflow {
		return nil, ErrValueOverflow
	}
	return v, nil
}
