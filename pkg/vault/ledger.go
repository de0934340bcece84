package vault

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger holds per-(account, asset) balances, per-asset totals, and the
// running global USD6 total. Entries are created on first credit and never
// removed; a zero balance is a valid entry.
//
// The ledger's own lock only makes reads safe against concurrent queries.
// Mutation ordering is the transaction executor's job: only the Vault writes
// here, under its reentrancy lock.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int // asset -> account -> balance
	totals   map[common.Address]*uint256.Int                    // asset -> total
	global   *uint256.Int                                       // USD6, cost-basis running sum
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		totals:   make(map[common.Address]*uint256.Int),
		global:   uint256.NewInt(0),
	}
}

// Balance returns a copy of the entry for (account, asset); zero if absent.
func (l *Ledger) Balance(account, asset common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if byAcct, ok := l.balances[asset]; ok {
		if b, ok := byAcct[account]; ok {
			return new(uint256.Int).Set(b)
		}
	}
	return uint256.NewInt(0)
}

// AssetTotal returns a copy of the total custodied amount for an asset.
func (l *Ledger) AssetTotal(asset common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t, ok := l.totals[asset]; ok {
		return new(uint256.Int).Set(t)
	}
	return uint256.NewInt(0)
}

// GlobalValue returns a copy of the running USD6 total.
func (l *Ledger) GlobalValue() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.global)
}

// Assets returns the ids of every asset the ledger has ever touched.
func (l *Ledger) Assets() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]common.Address, 0, len(l.totals))
	for asset := range l.totals {
		out = append(out, asset)
	}
	return out
}

// Balances returns a copy of every entry an account holds, keyed by asset.
func (l *Ledger) Balances(account common.Address) map[common.Address]*uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[common.Address]*uint256.Int)
	for asset, byAcct := range l.balances {
		if b, ok := byAcct[account]; ok {
			out[asset] = new(uint256.Int).Set(b)
		}
	}
	return out
}

// Credit adds amount to (account, asset) and the asset total, and adds usd6
// to the global total.
func (l *Ledger) Credit(account, asset common.Address, amount, usd6 *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byAcct, ok := l.balances[asset]
	if !ok {
		byAcct = make(map[common.Address]*uint256.Int)
		l.balances[asset] = byAcct
	}
	b, ok := byAcct[account]
	if !ok {
		b = uint256.NewInt(0)
		byAcct[account] = b
	}
	b.Add(b, amount)

	t, ok := l.totals[asset]
	if !ok {
		t = uint256.NewInt(0)
		l.totals[asset] = t
	}
	t.Add(t, amount)

	l.global.Add(l.global, usd6)
}

// Debit removes amount from (account, asset) and the asset total, and
// subtracts usd6 from the global total. The caller has already verified the
// balance is sufficient; Debit re-checks and refuses to go negative.
func (l *Ledger) Debit(account, asset common.Address, amount, usd6 *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	byAcct, ok := l.balances[asset]
	if !ok {
		return ErrInsufficientBalance
	}
	b, ok := byAcct[account]
	if !ok || b.Lt(amount) {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	l.totals[asset].Sub(l.totals[asset], amount)

	// The global total is cost-basis accounting and can undershoot when
	// prices moved between deposit and withdrawal; clamp at zero rather
	// than wrap.
	if l.global.Lt(usd6) {
		l.global.Clear()
	} else {
		l.global.Sub(l.global, usd6)
	}
	return nil
}

// restore overwrites an entry, its asset total, and the global total.
// Used only by the executor's compensating rollback.
func (l *Ledger) restore(account, asset common.Address, balance, total, global *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byAcct, ok := l.balances[asset]
	if !ok {
		byAcct = make(map[common.Address]*uint256.Int)
		l.balances[asset] = byAcct
	}
	byAcct[account] = new(uint256.Int).Set(balance)
	l.totals[asset] = new(uint256.Int).Set(total)
	l.global = new(uint256.Int).Set(global)
}

// load seeds an entry from durable storage at startup.
func (l *Ledger) load(account, asset common.Address, balance *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byAcct, ok := l.balances[asset]
	if !ok {
		byAcct = make(map[common.Address]*uint256.Int)
		l.balances[asset] = byAcct
	}
	byAcct[account] = new(uint256.Int).Set(balance)
}

func (l *Ledger) loadTotal(asset common.Address, total *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[asset] = new(uint256.Int).Set(total)
}

func (l *Ledger) loadGlobal(v *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global = new(uint256.Int).Set(v)
}
