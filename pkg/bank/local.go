// Package bank provides an in-process asset bank: it models external wallets
// and vault custody for the devnet daemon and for tests, standing in for the
// on-chain token contracts a production deployment would call.
package bank

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrInsufficientFunds = errors.New("bank: insufficient funds")

// Local keeps external holder balances and per-asset custody totals. It
// implements both vault.AssetBank (Pull/Push) and vault.DecimalsSource
// (TryDecimals) for tokens whose precision has been registered.
type Local struct {
	mu       sync.Mutex
	wallets  map[common.Address]map[common.Address]*uint256.Int // asset -> holder -> balance
	custody  map[common.Address]*uint256.Int                    // asset -> custodied amount
	decimals map[common.Address]uint8
}

func NewLocal() *Local {
	return &Local{
		wallets:  make(map[common.Address]map[common.Address]*uint256.Int),
		custody:  make(map[common.Address]*uint256.Int),
		decimals: make(map[common.Address]uint8),
	}
}

// Mint funds a holder's external wallet. Devnet/test faucet.
func (l *Local) Mint(asset, holder common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.walletLocked(asset, holder)
	w.Add(w, amount)
}

// RegisterToken records a token's declared unit precision.
func (l *Local) RegisterToken(asset common.Address, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decimals[asset] = decimals
}

// TryDecimals implements vault.DecimalsSource.
func (l *Local) TryDecimals(asset common.Address) (uint8, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.decimals[asset]
	return d, ok
}

// Pull moves amount of asset from holder's wallet into custody.
func (l *Local) Pull(asset, holder common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletLocked(asset, holder)
	if w.Lt(amount) {
		return fmt.Errorf("%w: holder %s has %s of %s, need %s",
			ErrInsufficientFunds, holder.Hex(), w.Dec(), asset.Hex(), amount.Dec())
	}
	w.Sub(w, amount)
	c := l.custodyLocked(asset)
	c.Add(c, amount)
	return nil
}

// Push releases amount of asset from custody back to holder's wallet.
func (l *Local) Push(asset, holder common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.custodyLocked(asset)
	if c.Lt(amount) {
		return fmt.Errorf("%w: custody holds %s of %s, need %s",
			ErrInsufficientFunds, c.Dec(), asset.Hex(), amount.Dec())
	}
	c.Sub(c, amount)
	w := l.walletLocked(asset, holder)
	w.Add(w, amount)
	return nil
}

// WalletBalance returns a holder's external balance for an asset.
func (l *Local) WalletBalance(asset, holder common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.walletLocked(asset, holder))
}

// CustodyBalance returns the custodied amount for an asset.
func (l *Local) CustodyBalance(asset common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.custodyLocked(asset))
}

func (l *Local) walletLocked(asset, holder common.Address) *uint256.Int {
	byHolder, ok := l.wallets[asset]
	if !ok {
		byHolder = make(map[common.Address]*uint256.Int)
		l.wallets[asset] = byHolder
	}
	b, ok := byHolder[holder]
	if !ok {
		b = uint256.NewInt(0)
		byHolder[holder] = b
	}
	return b
}

func (l *Local) custodyLocked(asset common.Address) *uint256.Int {
	c, ok := l.custody[asset]
	if !ok {
		c = uint256.NewInt(0)
		l.custody[asset] = c
	}
	return c
}
