package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/solera-fi/vaultd/pkg/util"
)

func TestManualFeedNoRound(t *testing.T) {
	f := NewManualFeed(8, util.RealClock{})
	if _, err := f.Latest(); !errors.Is(err, ErrNoRound) {
		t.Errorf("err = %v, want ErrNoRound", err)
	}
}

func TestManualFeedSet(t *testing.T) {
	clock := &util.FakeClock{T: time.Unix(1_700_000_000, 0)}
	f := NewManualFeed(8, clock)
	f.Set(big.NewInt(200000000000))

	pd, err := f.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if pd.Answer.Int64() != 200000000000 || pd.Decimals != 8 {
		t.Errorf("got %s @ %d decimals", pd.Answer, pd.Decimals)
	}
	if !pd.UpdatedAt.Equal(clock.T) {
		t.Errorf("updatedAt = %v, want clock time", pd.UpdatedAt)
	}

	// A later push replaces the answer and the timestamp.
	clock.Advance(time.Minute)
	f.Set(big.NewInt(100000000000))
	pd, _ = f.Latest()
	if pd.Answer.Int64() != 100000000000 || !pd.UpdatedAt.Equal(clock.T) {
		t.Errorf("got %s at %v after update", pd.Answer, pd.UpdatedAt)
	}
}

func TestManualFeedSetAt(t *testing.T) {
	f := NewManualFeed(8, util.RealClock{})
	at := time.Unix(1_600_000_000, 0)
	f.SetAt(big.NewInt(42), at)

	pd, err := f.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !pd.UpdatedAt.Equal(at) {
		t.Errorf("updatedAt = %v, want %v", pd.UpdatedAt, at)
	}
}

// Latest must return a copy: mutating the caller's big.Int or the returned
// answer must not reach the feed's state.
func TestManualFeedCopies(t *testing.T) {
	f := NewManualFeed(8, util.RealClock{})
	in := big.NewInt(500)
	f.Set(in)
	in.SetInt64(999)

	pd, _ := f.Latest()
	if pd.Answer.Int64() != 500 {
		t.Errorf("answer = %s, caller mutation leaked in", pd.Answer)
	}
	pd.Answer.SetInt64(1)
	pd2, _ := f.Latest()
	if pd2.Answer.Int64() != 500 {
		t.Errorf("answer = %s, reader mutation leaked in", pd2.Answer)
	}
}

func TestFixedFeed(t *testing.T) {
	f := NewFixedFeed(big.NewInt(300000000), 8)
	pd, err := f.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if pd.Answer.Int64() != 300000000 || pd.Decimals != 8 {
		t.Errorf("got %s @ %d decimals", pd.Answer, pd.Decimals)
	}
	if pd.UpdatedAt.IsZero() {
		t.Error("fixed feed did not stamp a time")
	}
}
