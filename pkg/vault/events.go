package vault

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observation types emitted by the vault. Ledger-moving observations carry
// the native amount and its USD6 value as committed; policy observations
// carry old/new values and the acting administrator.
const (
	ObsDeposit    = "deposit"
	ObsWithdraw   = "withdraw"
	ObsCapChange  = "cap_change"
	ObsFeedSet    = "feed_set"
	ObsPauseState = "pause_state"
	ObsRoleChange = "role_change"
)

// Observation is a committed-state event. Numeric fields are decimal strings
// so payloads survive JSON consumers that cannot hold 256-bit integers.
type Observation struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Account   common.Address `json:"account,omitempty"`
	Asset     common.Address `json:"asset,omitempty"`
	Amount    string         `json:"amount,omitempty"`
	Usd6      string         `json:"usd6,omitempty"`
	Actor     common.Address `json:"actor,omitempty"`
	Field     string         `json:"field,omitempty"`
	OldValue  string         `json:"old_value,omitempty"`
	NewValue  string         `json:"new_value,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

func newObservation(typ string, ts time.Time) Observation {
	return Observation{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: ts,
	}
}

// Sink receives observations after the operation that produced them has
// fully committed. Publish must not block the vault; slow consumers drop.
type Sink interface {
	Publish(Observation)
}

// MultiSink fans an observation out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(obs Observation) {
	for _, s := range m {
		if s != nil {
			s.Publish(obs)
		}
	}
}

// LogSink writes observations to the structured log.
type LogSink struct {
	Log *zap.SugaredLogger
}

func (s LogSink) Publish(obs Observation) {
	s.Log.Infow("observation",
		"type", obs.Type,
		"seq", obs.Seq,
		"account", obs.Account.Hex(),
		"asset", obs.Asset.Hex(),
		"amount", obs.Amount,
		"usd6", obs.Usd6,
		"field", obs.Field,
		"old", obs.OldValue,
		"new", obs.NewValue,
	)
}
