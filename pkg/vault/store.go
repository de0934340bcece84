package vault

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Store is the pebble-backed durable copy of the ledger plus an append-only
// observation journal. Key space:
//
//	bal/<asset 20B><account 20B> -> 32B big-endian balance
//	tot/<asset 20B>              -> 32B big-endian asset total
//	gvt                          -> 32B big-endian global USD6 total
//	obs/<seq 8B big-endian>      -> observation JSON
//
// Balances are written as absolute values, so a commit always reflects the
// ledger wholesale and a lost write is healed by the next commit touching
// the same keys.
type Store struct {
	db *pebble.DB
}

var (
	keyGlobal   = []byte("gvt")
	prefixBal   = []byte("bal/")
	prefixTotal = []byte("tot/")
	prefixObs   = []byte("obs/")
)

func OpenStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func balanceKey(asset, account common.Address) []byte {
	k := make([]byte, 0, len(prefixBal)+40)
	k = append(k, prefixBal...)
	k = append(k, asset.Bytes()...)
	return append(k, account.Bytes()...)
}

func totalKey(asset common.Address) []byte {
	k := make([]byte, 0, len(prefixTotal)+20)
	k = append(k, prefixTotal...)
	return append(k, asset.Bytes()...)
}

func obsKey(seq uint64) []byte {
	k := make([]byte, len(prefixObs)+8)
	copy(k, prefixObs)
	binary.BigEndian.PutUint64(k[len(prefixObs):], seq)
	return k
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Batch collects one operation's writes for an atomic commit.
type Batch struct {
	b *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

func (b *Batch) SetBalance(asset, account common.Address, v *uint256.Int) {
	val := v.Bytes32()
	_ = b.b.Set(balanceKey(asset, account), val[:], nil)
}

func (b *Batch) SetTotal(asset common.Address, v *uint256.Int) {
	val := v.Bytes32()
	_ = b.b.Set(totalKey(asset), val[:], nil)
}

func (b *Batch) SetGlobalValue(v *uint256.Int) {
	val := v.Bytes32()
	_ = b.b.Set(keyGlobal, val[:], nil)
}

func (b *Batch) AppendObservation(seq uint64, obs Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}
	return b.b.Set(obsKey(seq), data, nil)
}

func (b *Batch) Commit() error {
	return b.b.Commit(pebble.Sync)
}

func (b *Batch) Close() error {
	return b.b.Close()
}

// LoadInto rebuilds a ledger from durable state. Returns the highest
// journaled observation sequence number (0 when the journal is empty).
func (s *Store) LoadInto(l *Ledger) (uint64, error) {
	if err := s.loadPrefix(prefixBal, func(k, v []byte) error {
		if len(k) != 40 {
			return fmt.Errorf("malformed balance key of length %d", len(k))
		}
		asset := common.BytesToAddress(k[:20])
		account := common.BytesToAddress(k[20:])
		l.load(account, asset, new(uint256.Int).SetBytes(v))
		return nil
	}); err != nil {
		return 0, err
	}

	if err := s.loadPrefix(prefixTotal, func(k, v []byte) error {
		if len(k) != 20 {
			return fmt.Errorf("malformed total key of length %d", len(k))
		}
		l.loadTotal(common.BytesToAddress(k), new(uint256.Int).SetBytes(v))
		return nil
	}); err != nil {
		return 0, err
	}

	data, closer, err := s.db.Get(keyGlobal)
	switch err {
	case nil:
		l.loadGlobal(new(uint256.Int).SetBytes(data))
		closer.Close()
	case pebble.ErrNotFound:
		// Fresh store.
	default:
		return 0, fmt.Errorf("failed to load global total: %w", err)
	}

	return s.lastObservationSeq()
}

func (s *Store) loadPrefix(prefix []byte, fn func(k, v []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key()[len(prefix):], iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) lastObservationSeq() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixObs,
		UpperBound: keyUpperBound(prefixObs),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return binary.BigEndian.Uint64(iter.Key()[len(prefixObs):]), nil
}

// RecentObservations returns up to limit journaled observations, newest first.
func (s *Store) RecentObservations(limit int) ([]Observation, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixObs,
		UpperBound: keyUpperBound(prefixObs),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Observation
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var obs Observation
		if err := json.Unmarshal(iter.Value(), &obs); err != nil {
			continue // skip corrupt entries
		}
		out = append(out, obs)
	}
	return out, iter.Error()
}
