package api

import (
	"encoding/json"
	"net/http"
)

// Request/response types for the REST surface. Amounts, prices, and USD6
// values travel as decimal strings: balances are 256-bit and would not
// survive JSON numbers.

// MoveRequest is the body of deposit and withdraw calls. Asset empty or the
// zero address means the native asset.
type MoveRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset,omitempty"`
	Amount  string `json:"amount"`
}

// MoveResponse reports the committed figures of a deposit/withdraw.
type MoveResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
	Usd6    string `json:"usd6"`
	Balance string `json:"balance"` // entry balance after the operation
}

// QuoteResponse is the read-only conversion result.
type QuoteResponse struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	Usd6   string `json:"usd6"`
}

// AccountResponse lists an account's entries keyed by asset.
type AccountResponse struct {
	Account  string            `json:"account"`
	Balances map[string]string `json:"balances"`
}

// TotalsResponse is the vault-wide snapshot.
type TotalsResponse struct {
	AssetTotals     map[string]string `json:"assetTotals"`
	GlobalValueUsd6 string            `json:"globalValueUsd6"`
	GlobalCapUsd6   string            `json:"globalCapUsd6"`
	WithdrawCapUsd6 string            `json:"withdrawCapUsd6"`
	Paused          bool              `json:"paused"`
}

// CapsRequest updates one or both caps. Omitted fields are left unchanged.
type CapsRequest struct {
	Actor       string `json:"actor"`
	GlobalCap   string `json:"globalCap,omitempty"`
	WithdrawCap string `json:"withdrawCap,omitempty"`
}

// FeedRequest registers a manual price feed for a token asset.
type FeedRequest struct {
	Actor    string `json:"actor"`
	Asset    string `json:"asset"`
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`

	// TokenDecimals, when nonzero, registers the token's unit precision
	// with the bank so conversions stop defaulting to 18.
	TokenDecimals uint8 `json:"tokenDecimals,omitempty"`
}

// ActorRequest carries only the acting administrator (pause, unpause).
type ActorRequest struct {
	Actor string `json:"actor"`
}

// WSSubscribeRequest is the client->server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg, Detail: detail})
}
