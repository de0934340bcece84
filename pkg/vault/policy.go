package vault

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Policy holds the vault's mutable operating parameters: the two value caps,
// the pause flag, and the set of administrator addresses. Administrative
// mutation goes through an explicit Authorize check; policy operations never
// fail on ledger state.
type Policy struct {
	mu          sync.RWMutex
	admins      map[common.Address]bool
	globalCap   *uint256.Int // USD6
	withdrawCap *uint256.Int // USD6, per single withdrawal
	paused      bool
}

func NewPolicy(admin common.Address, globalCap, withdrawCap *uint256.Int) *Policy {
	p := &Policy{
		admins:      map[common.Address]bool{admin: true},
		globalCap:   new(uint256.Int).Set(globalCap),
		withdrawCap: new(uint256.Int).Set(withdrawCap),
	}
	return p
}

// Authorize is the permission-check gate for every administrative mutation.
func (p *Policy) Authorize(actor common.Address) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.admins[actor] {
		return ErrAccessDenied
	}
	return nil
}

func (p *Policy) Grant(actor, grantee common.Address) error {
	if err := p.Authorize(actor); err != nil {
		return err
	}
	if grantee == (common.Address{}) {
		return ErrZeroAsset
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.admins[grantee] = true
	return nil
}

func (p *Policy) Revoke(actor, grantee common.Address) error {
	if err := p.Authorize(actor); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.admins, grantee)
	return nil
}

// SetGlobalCap replaces the global cap and returns the previous value.
// Caps are independent; no cross-validation against the per-withdrawal cap
// or the current outstanding total.
func (p *Policy) SetGlobalCap(actor common.Address, cap *uint256.Int) (*uint256.Int, error) {
	if err := p.Authorize(actor); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.globalCap
	p.globalCap = new(uint256.Int).Set(cap)
	return old, nil
}

// SetWithdrawCap replaces the per-withdrawal cap and returns the previous value.
func (p *Policy) SetWithdrawCap(actor common.Address, cap *uint256.Int) (*uint256.Int, error) {
	if err := p.Authorize(actor); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.withdrawCap
	p.withdrawCap = new(uint256.Int).Set(cap)
	return old, nil
}

func (p *Policy) SetPaused(actor common.Address, paused bool) error {
	if err := p.Authorize(actor); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
	return nil
}

func (p *Policy) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// Caps returns copies of (globalCap, withdrawCap).
func (p *Policy) Caps() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.globalCap), new(uint256.Int).Set(p.withdrawCap)
}

// CheckDeposit validates current + v against the global cap and returns the
// would-be new total. Caps are read fresh on every call.
func (p *Policy) CheckDeposit(current, v *uint256.Int) (*uint256.Int, error) {
	p.mu.RLock()
	cap := p.globalCap
	p.mu.RUnlock()

	newTotal := new(uint256.Int)
	if _, overflow := newTotal.AddOverflow(current, v); overflow {
		return nil, ErrValueOverflow
	}
	if newTotal.Gt(cap) {
		return nil, &GlobalCapError{NewTotal: newTotal, Cap: new(uint256.Int).Set(cap)}
	}
	return newTotal, nil
}

// CheckWithdraw validates a single withdrawal's USD6 value against the
// per-withdrawal cap.
func (p *Policy) CheckWithdraw(v *uint256.Int) error {
	p.mu.RLock()
	cap := p.withdrawCap
	p.mu.RUnlock()

	if v.Gt(cap) {
		return &WithdrawCapError{Value: new(uint256.Int).Set(v), Cap: new(uint256.Int).Set(cap)}
	}
	return nil
}
