package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/solera-fi/vaultd/pkg/bank"
	"github.com/solera-fi/vaultd/pkg/oracle"
	"github.com/solera-fi/vaultd/pkg/util"
	"github.com/solera-fi/vaultd/pkg/vault"
)

// Server exposes the vault over REST and streams observations over
// WebSocket. It is a thin shell: all semantics live in pkg/vault.
type Server struct {
	vault  *vault.Vault
	bank   *bank.Local // nil when the daemon runs against an external bank
	router *mux.Router
	hub    *Hub
	clock  util.Clock
	log    *zap.SugaredLogger

	allowedOrigins []string
}

func NewServer(v *vault.Vault, b *bank.Local, allowedOrigins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		vault:          v,
		bank:           b,
		router:         mux.NewRouter(),
		hub:            NewHub(log),
		clock:          util.RealClock{},
		log:            log,
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub so the daemon can wire it in as an
// observation sink.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/vault/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/vault/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/vault/quote", s.handleQuote).Methods("GET")
	api.HandleFunc("/vault/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/vault/totals", s.handleGetTotals).Methods("GET")
	api.HandleFunc("/vault/observations", s.handleGetObservations).Methods("GET")

	api.HandleFunc("/bank/mint", s.handleMint).Methods("POST")

	api.HandleFunc("/admin/caps", s.handleSetCaps).Methods("POST")
	api.HandleFunc("/admin/feeds", s.handleSetFeed).Methods("POST")
	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", s.handleUnpause).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, true)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, false)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, deposit bool) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	account, err := parseAddress(req.Account)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account", err.Error())
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	usd6, quoteErr := s.vault.QuoteUsd6(asset, amount)

	switch {
	case deposit && vault.IsNative(asset):
		err = s.vault.DepositNative(account, amount)
	case deposit:
		err = s.vault.DepositAsset(account, asset, amount)
	case vault.IsNative(asset):
		err = s.vault.WithdrawNative(account, amount)
	default:
		err = s.vault.WithdrawAsset(account, asset, amount)
	}
	if err != nil {
		respondVaultError(w, err)
		return
	}

	resp := MoveResponse{
		Account: account.Hex(),
		Asset:   asset.Hex(),
		Amount:  amount.Dec(),
		Balance: s.vault.BalanceOf(account, asset).Dec(),
	}
	if quoteErr == nil {
		resp.Usd6 = usd6.Dec()
	}
	respondJSON(w, resp)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(r.URL.Query().Get("asset"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	amount, err := uint256.FromDecimal(r.URL.Query().Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	usd6, err := s.vault.QuoteUsd6(asset, amount)
	if err != nil {
		respondVaultError(w, err)
		return
	}
	respondJSON(w, QuoteResponse{Asset: asset.Hex(), Amount: amount.Dec(), Usd6: usd6.Dec()})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	balances := make(map[string]string)
	for asset, b := range s.vault.Balances(account) {
		balances[asset.Hex()] = b.Dec()
	}
	respondJSON(w, AccountResponse{Account: account.Hex(), Balances: balances})
}

func (s *Server) handleGetTotals(w http.ResponseWriter, r *http.Request) {
	totals := make(map[string]string)
	for _, asset := range s.vault.Assets() {
		totals[asset.Hex()] = s.vault.AssetTotal(asset).Dec()
	}
	globalCap, withdrawCap := s.vault.Caps()

	respondJSON(w, TotalsResponse{
		AssetTotals:     totals,
		GlobalValueUsd6: s.vault.GlobalValueTotal().Dec(),
		GlobalCapUsd6:   globalCap.Dec(),
		WithdrawCapUsd6: withdrawCap.Dec(),
		Paused:          s.vault.Paused(),
	})
}

func (s *Server) handleGetObservations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	obs, err := s.vault.RecentObservations(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if obs == nil {
		obs = []vault.Observation{}
	}
	respondJSON(w, obs)
}

// handleMint funds an external wallet on the in-process bank. Only available
// when the daemon owns the bank; against an external bank it is a 501.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if s.bank == nil {
		respondError(w, http.StatusNotImplemented, "no in-process bank", "")
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account", err.Error())
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	s.bank.Mint(asset, account, amount)
	respondJSON(w, MoveResponse{
		Account: account.Hex(),
		Asset:   asset.Hex(),
		Amount:  amount.Dec(),
		Balance: s.bank.WalletBalance(asset, account).Dec(),
	})
}

func (s *Server) handleSetCaps(w http.ResponseWriter, r *http.Request) {
	var req CapsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	actor, err := parseAddress(req.Actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid actor", err.Error())
		return
	}

	if req.GlobalCap != "" {
		cap, err := uint256.FromDecimal(req.GlobalCap)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid globalCap", err.Error())
			return
		}
		if err := s.vault.SetGlobalCap(actor, cap); err != nil {
			respondVaultError(w, err)
			return
		}
	}
	if req.WithdrawCap != "" {
		cap, err := uint256.FromDecimal(req.WithdrawCap)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid withdrawCap", err.Error())
			return
		}
		if err := s.vault.SetWithdrawCap(actor, cap); err != nil {
			respondVaultError(w, err)
			return
		}
	}

	s.handleGetTotals(w, r)
}

func (s *Server) handleSetFeed(w http.ResponseWriter, r *http.Request) {
	var req FeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	actor, err := parseAddress(req.Actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid actor", err.Error())
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	price, err := uint256.FromDecimal(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price", err.Error())
		return
	}

	feed := oracle.NewManualFeed(req.Decimals, s.clock)
	feed.Set(price.ToBig())
	if err := s.vault.SetAssetFeed(actor, asset, feed); err != nil {
		respondVaultError(w, err)
		return
	}
	if s.bank != nil && req.TokenDecimals > 0 {
		s.bank.RegisterToken(asset, req.TokenDecimals)
	}
	respondJSON(w, map[string]string{"asset": asset.Hex(), "price": price.Dec()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handlePauseState(w, r, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.handlePauseState(w, r, false)
}

func (s *Server) handlePauseState(w http.ResponseWriter, r *http.Request, paused bool) {
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	actor, err := parseAddress(req.Actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid actor", err.Error())
		return
	}

	if paused {
		err = s.vault.Pause(actor)
	} else {
		err = s.vault.Unpause(actor)
	}
	if err != nil {
		respondVaultError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"paused": s.vault.Paused()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("not a hex address")
	}
	return common.HexToAddress(s), nil
}

// parseAsset treats an empty string as the native asset.
func parseAsset(s string) (common.Address, error) {
	if s == "" {
		return vault.NativeAsset, nil
	}
	return parseAddress(s)
}

// respondVaultError maps the vault's error taxonomy onto HTTP statuses so
// callers can branch on cause.
func respondVaultError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrZeroAmount),
		errors.Is(err, vault.ErrZeroAsset):
		status = http.StatusBadRequest
	case errors.Is(err, vault.ErrUnknownAsset):
		status = http.StatusNotFound
	case errors.Is(err, vault.ErrPaused),
		errors.Is(err, vault.ErrReentrantCall):
		status = http.StatusLocked
	case errors.Is(err, vault.ErrInsufficientBalance),
		errors.Is(err, vault.ErrGlobalCapExceeded),
		errors.Is(err, vault.ErrWithdrawCapExceeded):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrNonPositivePrice),
		errors.Is(err, vault.ErrStalePrice),
		errors.Is(err, vault.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	respondError(w, status, err.Error(), "")
}
