package vault

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/solera-fi/vaultd/pkg/util"
)

// stubFeed is a scripted price feed that counts reads.
type stubFeed struct {
	answer    *big.Int
	decimals  uint8
	updatedAt time.Time
	err       error
	calls     int
}

func (f *stubFeed) Latest() (PriceData, error) {
	f.calls++
	if f.err != nil {
		return PriceData{}, f.err
	}
	return PriceData{Answer: f.answer, Decimals: f.decimals, UpdatedAt: f.updatedAt}, nil
}

type stubDecimals map[common.Address]uint8

func (s stubDecimals) TryDecimals(asset common.Address) (uint8, bool) {
	d, ok := s[asset]
	return d, ok
}

var tokenA = common.HexToAddress("0xCC00000000000000000000000000000000000001")

func mustDec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

// $2000.000000 at 8 price decimals, the worked reference scenario:
// 1.0 native units (1e18) must convert to exactly 2000000000 USD6.
func TestToUsd6ReferenceScenario(t *testing.T) {
	feed := &stubFeed{answer: big.NewInt(200000000000), decimals: 8, updatedAt: time.Now()}
	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, util.RealClock{})

	got, err := conv.ToUsd6(NativeAsset, mustDec(t, "1000000000000000000"))
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if got.Dec() != "2000000000" {
		t.Errorf("usd6 = %s, want 2000000000", got.Dec())
	}
}

// Amounts below one whole unit truncate to zero before the multiply. This is
// the accounting rule, not a defect: divide-then-multiply ordering.
func TestToUsd6TruncatesSubUnitAmounts(t *testing.T) {
	feed := &stubFeed{answer: big.NewInt(200000000000), decimals: 8, updatedAt: time.Now()}
	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, util.RealClock{})

	got, err := conv.ToUsd6(NativeAsset, mustDec(t, "500000000000000000")) // 0.5 units
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("usd6 = %s, want 0", got.Dec())
	}
}

func TestToUsd6ZeroAmountSkipsOracle(t *testing.T) {
	feed := &stubFeed{err: errors.New("should not be read")}
	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, util.RealClock{})

	got, err := conv.ToUsd6(NativeAsset, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("zero amount must not fail: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("usd6 = %s, want 0", got.Dec())
	}
	if feed.calls != 0 {
		t.Errorf("oracle read %d times for zero amount", feed.calls)
	}
}

func TestToUsd6UnknownAsset(t *testing.T) {
	conv := NewConverter(NewFeedRegistry(nil), NewDecimalsResolver(nil), 0, util.RealClock{})

	// Native with no feed configured at construction.
	if _, err := conv.ToUsd6(NativeAsset, uint256.NewInt(1)); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("native without feed: err = %v, want ErrUnknownAsset", err)
	}
	// Unregistered token.
	if _, err := conv.ToUsd6(tokenA, uint256.NewInt(1)); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("unregistered token: err = %v, want ErrUnknownAsset", err)
	}
}

func TestToUsd6NonPositivePrice(t *testing.T) {
	for _, answer := range []*big.Int{big.NewInt(0), big.NewInt(-1)} {
		feed := &stubFeed{answer: answer, decimals: 8, updatedAt: time.Now()}
		conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, util.RealClock{})

		if _, err := conv.ToUsd6(NativeAsset, uint256.NewInt(1)); !errors.Is(err, ErrNonPositivePrice) {
			t.Errorf("answer %s: err = %v, want ErrNonPositivePrice", answer, err)
		}
	}
}

// With a zero threshold the staleness check is dormant: an arbitrarily old
// observation converts fine. A nonzero threshold arms it.
func TestToUsd6StalenessDormantByDefault(t *testing.T) {
	clock := &util.FakeClock{T: time.Unix(1_700_000_000, 0)}
	ancient := clock.T.Add(-365 * 24 * time.Hour)
	feed := &stubFeed{answer: big.NewInt(200000000000), decimals: 8, updatedAt: ancient}

	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, clock)
	if _, err := conv.ToUsd6(NativeAsset, mustDec(t, "1000000000000000000")); err != nil {
		t.Errorf("dormant staleness check rejected old price: %v", err)
	}

	armed := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), time.Hour, clock)
	if _, err := armed.ToUsd6(NativeAsset, mustDec(t, "1000000000000000000")); !errors.Is(err, ErrStalePrice) {
		t.Errorf("armed staleness check: err = %v, want ErrStalePrice", err)
	}
}

func TestToUsd6StalenessBoundary(t *testing.T) {
	clock := &util.FakeClock{T: time.Unix(1_700_000_000, 0)}
	feed := &stubFeed{answer: big.NewInt(100000000), decimals: 8, updatedAt: clock.T.Add(-time.Hour)}
	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), time.Hour, clock)

	// updatedAt + threshold == now: not yet stale.
	if _, err := conv.ToUsd6(NativeAsset, mustDec(t, "1000000000000000000")); err != nil {
		t.Errorf("exactly-at-threshold price rejected: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := conv.ToUsd6(NativeAsset, mustDec(t, "1000000000000000000")); !errors.Is(err, ErrStalePrice) {
		t.Errorf("past-threshold price: err = %v, want ErrStalePrice", err)
	}
}

func TestToUsd6TokenDecimals(t *testing.T) {
	reg := NewFeedRegistry(nil)
	feed := &stubFeed{answer: big.NewInt(300000000), decimals: 8, updatedAt: time.Now()} // $3
	if err := reg.SetFeed(tokenA, feed); err != nil {
		t.Fatalf("set feed: %v", err)
	}

	// Declared 6-decimal token: 5.0 units at $3 = $15.000000.
	conv := NewConverter(reg, NewDecimalsResolver(stubDecimals{tokenA: 6}), 0, util.RealClock{})
	got, err := conv.ToUsd6(tokenA, mustDec(t, "5000000"))
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if got.Dec() != "15000000" {
		t.Errorf("usd6 = %s, want 15000000", got.Dec())
	}

	// Unknown precision falls back to 18: the same raw amount is far below
	// one whole unit and truncates to zero.
	convDefault := NewConverter(reg, NewDecimalsResolver(stubDecimals{}), 0, util.RealClock{})
	got, err = convDefault.ToUsd6(tokenA, mustDec(t, "5000000"))
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("usd6 = %s, want 0 under the 18-decimal default", got.Dec())
	}
}

// Two reads against identical oracle state yield identical values.
func TestToUsd6Idempotent(t *testing.T) {
	feed := &stubFeed{answer: big.NewInt(123456789), decimals: 4, updatedAt: time.Now()}
	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, util.RealClock{})

	amount := mustDec(t, "7000000000000000000")
	a, err := conv.ToUsd6(NativeAsset, amount)
	if err != nil {
		t.Fatalf("first convert: %v", err)
	}
	b, err := conv.ToUsd6(NativeAsset, amount)
	if err != nil {
		t.Fatalf("second convert: %v", err)
	}
	if !a.Eq(b) {
		t.Errorf("conversion not idempotent: %s != %s", a.Dec(), b.Dec())
	}
}

func TestToUsd6OracleReadFailure(t *testing.T) {
	readErr := errors.New("feed offline")
	feed := &stubFeed{err: readErr}
	conv := NewConverter(NewFeedRegistry(feed), NewDecimalsResolver(nil), 0, util.RealClock{})

	if _, err := conv.ToUsd6(NativeAsset, uint256.NewInt(1)); !errors.Is(err, readErr) {
		t.Errorf("err = %v, want wrapped %v", err, readErr)
	}
}
