package vault

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/solera-fi/vaultd/pkg/util"
)

// Options configures a Vault instance.
type Options struct {
	Admin       common.Address
	GlobalCap   *uint256.Int // USD6
	WithdrawCap *uint256.Int // USD6, per single withdrawal

	// NativeFeed prices the native asset. Nil permanently disables
	// native-asset operations on this instance; it cannot be set later.
	NativeFeed PriceFeed

	// Decimals answers token precision queries; nil means every token
	// defaults to 18.
	Decimals DecimalsSource

	// Bank performs the external asset transfers.
	Bank AssetBank

	// Store, when non-nil, makes the ledger durable. The ledger is
	// reloaded from it at construction.
	Store *Store

	Sink   Sink
	Logger *zap.SugaredLogger
	Clock  util.Clock

	// MaxPriceAge arms the oracle staleness check when nonzero.
	// Zero (the default) leaves the check dormant.
	MaxPriceAge time.Duration
}

// Vault is the transaction executor: it orchestrates checks, ledger effects,
// and the external asset transfer for every deposit and withdrawal, under a
// single per-instance reentrancy lock.
//
// Ordering is checks -> effects -> interactions. Effects land in the ledger
// before the bank is invoked, and a failed interaction is unwound by
// compensating rollback before the lock is released, so no partial mutation
// ever escapes. The lock serializes all deposit/withdraw activity on the
// instance; a nested call from inside a bank transfer fails immediately with
// ErrReentrantCall.
//
// There is no entry point that credits native value outside DepositNative:
// unsolicited native transfers have nowhere to land and are rejected by
// construction.
type Vault struct {
	mu sync.Mutex // reentrancy guard; TryLock only, never waits

	ledger    *Ledger
	store     *Store // nil = memory only
	policy    *Policy
	feeds     *FeedRegistry
	converter *Converter
	bank      AssetBank
	sink      Sink
	clock     util.Clock
	log       *zap.SugaredLogger

	seqMu sync.Mutex
	seq   uint64
}

func New(opts Options) (*Vault, error) {
	if opts.Bank == nil {
		return nil, fmt.Errorf("vault: nil asset bank")
	}
	if opts.GlobalCap == nil || opts.WithdrawCap == nil {
		return nil, fmt.Errorf("vault: caps must be set")
	}
	if opts.Admin == (common.Address{}) {
		return nil, fmt.Errorf("vault: zero admin address")
	}

	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	feeds := NewFeedRegistry(opts.NativeFeed)
	v := &Vault{
		ledger:    NewLedger(),
		store:     opts.Store,
		policy:    NewPolicy(opts.Admin, opts.GlobalCap, opts.WithdrawCap),
		feeds:     feeds,
		converter: NewConverter(feeds, NewDecimalsResolver(opts.Decimals), opts.MaxPriceAge, clock),
		bank:      opts.Bank,
		sink:      opts.Sink,
		clock:     clock,
		log:       log,
	}

	if v.store != nil {
		seq, err := v.store.LoadInto(v.ledger)
		if err != nil {
			return nil, fmt.Errorf("vault: reload ledger: %w", err)
		}
		v.seq = seq
	}
	return v, nil
}

// DepositNative credits the caller with native value, pulling the amount
// from the caller's external wallet into custody.
func (v *Vault) DepositNative(account common.Address, amount *uint256.Int) error {
	return v.deposit(account, NativeAsset, amount)
}

// DepositAsset credits the caller with a token asset and pulls the amount
// from the caller into custody.
func (v *Vault) DepositAsset(account, asset common.Address, amount *uint256.Int) error {
	if IsNative(asset) {
		return ErrZeroAsset
	}
	return v.deposit(account, asset, amount)
}

// WithdrawNative debits the caller and pushes native value back out.
func (v *Vault) WithdrawNative(account common.Address, amount *uint256.Int) error {
	return v.withdraw(account, NativeAsset, amount)
}

// WithdrawAsset debits the caller and pushes the token out of custody.
func (v *Vault) WithdrawAsset(account, asset common.Address, amount *uint256.Int) error {
	if IsNative(asset) {
		return ErrZeroAsset
	}
	return v.withdraw(account, asset, amount)
}

func (v *Vault) deposit(account, asset common.Address, amount *uint256.Int) error {
	if !v.mu.TryLock() {
		return ErrReentrantCall
	}
	defer v.mu.Unlock()

	if v.policy.Paused() {
		return ErrPaused
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}

	usd6, err := v.converter.ToUsd6(asset, amount)
	if err != nil {
		return err
	}
	if _, err := v.policy.CheckDeposit(v.ledger.GlobalValue(), usd6); err != nil {
		return err
	}

	prevBal := v.ledger.Balance(account, asset)
	prevTot := v.ledger.AssetTotal(asset)
	prevGlobal := v.ledger.GlobalValue()

	v.ledger.Credit(account, asset, amount, usd6)

	if err := v.bank.Pull(asset, account, amount); err != nil {
		v.ledger.restore(account, asset, prevBal, prevTot, prevGlobal)
		v.log.Warnw("deposit_pull_failed",
			"account", account.Hex(), "asset", asset.Hex(), "err", err)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	v.commitMovement(ObsDeposit, account, asset, amount, usd6)
	return nil
}

func (v *Vault) withdraw(account, asset common.Address, amount *uint256.Int) error {
	if !v.mu.TryLock() {
		return ErrReentrantCall
	}
	defer v.mu.Unlock()

	if v.policy.Paused() {
		return ErrPaused
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if v.ledger.Balance(account, asset).Lt(amount) {
		return ErrInsufficientBalance
	}

	usd6, err := v.converter.ToUsd6(asset, amount)
	if err != nil {
		return err
	}
	if err := v.policy.CheckWithdraw(usd6); err != nil {
		return err
	}

	prevBal := v.ledger.Balance(account, asset)
	prevTot := v.ledger.AssetTotal(asset)
	prevGlobal := v.ledger.GlobalValue()

	if err := v.ledger.Debit(account, asset, amount, usd6); err != nil {
		return err
	}

	if err := v.bank.Push(asset, account, amount); err != nil {
		v.ledger.restore(account, asset, prevBal, prevTot, prevGlobal)
		v.log.Warnw("withdraw_push_failed",
			"account", account.Hex(), "asset", asset.Hex(), "err", err)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	v.commitMovement(ObsWithdraw, account, asset, amount, usd6)
	return nil
}

// QuoteUsd6 returns the USD6 value of amount of asset at the latest oracle
// price. Read-only.
func (v *Vault) QuoteUsd6(asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	return v.converter.ToUsd6(asset, amount)
}

// BalanceOf returns the ledger entry for (account, asset).
func (v *Vault) BalanceOf(account, asset common.Address) *uint256.Int {
	return v.ledger.Balance(account, asset)
}

// Balances returns every entry an account holds, keyed by asset.
func (v *Vault) Balances(account common.Address) map[common.Address]*uint256.Int {
	return v.ledger.Balances(account)
}

// AssetTotal returns the total custodied amount for an asset.
func (v *Vault) AssetTotal(asset common.Address) *uint256.Int {
	return v.ledger.AssetTotal(asset)
}

// Assets returns every asset the ledger has touched.
func (v *Vault) Assets() []common.Address {
	return v.ledger.Assets()
}

// GlobalValueTotal returns the running USD6 total.
func (v *Vault) GlobalValueTotal() *uint256.Int {
	return v.ledger.GlobalValue()
}

// Caps returns (globalCap, withdrawCap).
func (v *Vault) Caps() (*uint256.Int, *uint256.Int) {
	return v.policy.Caps()
}

// Paused reports the pause flag.
func (v *Vault) Paused() bool {
	return v.policy.Paused()
}

// RecentObservations reads back the journal, newest first. Empty without a
// durable store.
func (v *Vault) RecentObservations(limit int) ([]Observation, error) {
	if v.store == nil {
		return nil, nil
	}
	return v.store.RecentObservations(limit)
}

// SetGlobalCap updates the global outstanding-value cap.
func (v *Vault) SetGlobalCap(actor common.Address, cap *uint256.Int) error {
	old, err := v.policy.SetGlobalCap(actor, cap)
	if err != nil {
		return err
	}
	v.commitAdmin(ObsCapChange, actor, func(obs *Observation) {
		obs.Field = "global_cap"
		obs.OldValue = old.Dec()
		obs.NewValue = cap.Dec()
	})
	return nil
}

// SetWithdrawCap updates the per-withdrawal value cap.
func (v *Vault) SetWithdrawCap(actor common.Address, cap *uint256.Int) error {
	old, err := v.policy.SetWithdrawCap(actor, cap)
	if err != nil {
		return err
	}
	v.commitAdmin(ObsCapChange, actor, func(obs *Observation) {
		obs.Field = "withdraw_cap"
		obs.OldValue = old.Dec()
		obs.NewValue = cap.Dec()
	})
	return nil
}

// SetAssetFeed registers or replaces a token asset's price feed. The native
// asset's feed is fixed at construction and rejected here.
func (v *Vault) SetAssetFeed(actor, asset common.Address, feed PriceFeed) error {
	if err := v.policy.Authorize(actor); err != nil {
		return err
	}
	if err := v.feeds.SetFeed(asset, feed); err != nil {
		return err
	}
	v.commitAdmin(ObsFeedSet, actor, func(obs *Observation) {
		obs.Asset = asset
	})
	return nil
}

// Pause gates all deposit/withdraw entry points closed.
func (v *Vault) Pause(actor common.Address) error {
	return v.setPaused(actor, true)
}

// Unpause reopens the deposit/withdraw entry points.
func (v *Vault) Unpause(actor common.Address) error {
	return v.setPaused(actor, false)
}

func (v *Vault) setPaused(actor common.Address, paused bool) error {
	old := v.policy.Paused()
	if err := v.policy.SetPaused(actor, paused); err != nil {
		return err
	}
	v.commitAdmin(ObsPauseState, actor, func(obs *Observation) {
		obs.Field = "paused"
		obs.OldValue = fmt.Sprintf("%t", old)
		obs.NewValue = fmt.Sprintf("%t", paused)
	})
	return nil
}

// GrantRole adds an administrator.
func (v *Vault) GrantRole(actor, grantee common.Address) error {
	if err := v.policy.Grant(actor, grantee); err != nil {
		return err
	}
	v.commitAdmin(ObsRoleChange, actor, func(obs *Observation) {
		obs.Field = "grant"
		obs.NewValue = grantee.Hex()
	})
	return nil
}

// RevokeRole removes an administrator.
func (v *Vault) RevokeRole(actor, revokee common.Address) error {
	if err := v.policy.Revoke(actor, revokee); err != nil {
		return err
	}
	v.commitAdmin(ObsRoleChange, actor, func(obs *Observation) {
		obs.Field = "revoke"
		obs.NewValue = revokee.Hex()
	})
	return nil
}

func (v *Vault) nextSeq() uint64 {
	v.seqMu.Lock()
	defer v.seqMu.Unlock()
	v.seq++
	return v.seq
}

// commitMovement persists and publishes a deposit/withdraw observation.
// Called with the reentrancy lock held, after the interaction succeeded.
func (v *Vault) commitMovement(typ string, account, asset common.Address, amount, usd6 *uint256.Int) {
	obs := newObservation(typ, v.clock.Now())
	obs.Seq = v.nextSeq()
	obs.Account = account
	obs.Asset = asset
	obs.Amount = amount.Dec()
	obs.Usd6 = usd6.Dec()

	if v.store != nil {
		b := v.store.NewBatch()
		b.SetBalance(asset, account, v.ledger.Balance(account, asset))
		b.SetTotal(asset, v.ledger.AssetTotal(asset))
		b.SetGlobalValue(v.ledger.GlobalValue())
		if err := b.AppendObservation(obs.Seq, obs); err != nil {
			v.log.Warnw("observation_encode_failed", "seq", obs.Seq, "err", err)
		}
		if err := b.Commit(); err != nil {
			// Balance keys hold absolute values; the next commit on the
			// same keys heals a lost flush. The in-memory ledger stays
			// authoritative.
			v.log.Errorw("ledger_flush_failed", "seq", obs.Seq, "err", err)
		}
	}

	v.publish(obs)
}

// commitAdmin journals and publishes a policy observation.
func (v *Vault) commitAdmin(typ string, actor common.Address, fill func(*Observation)) {
	obs := newObservation(typ, v.clock.Now())
	obs.Seq = v.nextSeq()
	obs.Actor = actor
	fill(&obs)

	if v.store != nil {
		b := v.store.NewBatch()
		if err := b.AppendObservation(obs.Seq, obs); err != nil {
			v.log.Warnw("observation_encode_failed", "seq", obs.Seq, "err", err)
		}
		if err := b.Commit(); err != nil {
			v.log.Errorw("journal_flush_failed", "seq", obs.Seq, "err", err)
		}
	}

	v.publish(obs)
}

func (v *Vault) publish(obs Observation) {
	if v.sink != nil {
		v.sink.Publish(obs)
	}
}
