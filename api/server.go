// Package api provides the HTTP and WebSocket surface of the stackswap
// flow controller.
//
// Every user action on the conversion flow is a POST under /api/v1 that
// returns the resulting view. Wallet and payment-widget prompts are pushed
// to the browser over /api/v1/ws and answered through the wallet/* and
// payment/* endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/bridge"
	"github.com/seenimoa/stackswap/internal/config"
	"github.com/seenimoa/stackswap/internal/flow"
	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/pkg/models"
	"github.com/seenimoa/stackswap/pkg/utils"
)

// ServerConfig holds everything the server is wired to.
type ServerConfig struct {
	Config     *config.Config
	Controller *flow.Controller
	Bridge     *bridge.Bridge
	Hub        *WSHub
	Registry   *prometheus.Registry
	Logger     *logrus.Logger
	Version    string
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	ctrl     *flow.Controller
	bridge   *bridge.Bridge
	hub      *WSHub
	registry *prometheus.Registry
	logger   *logrus.Logger
	version  string
	started  time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(sc ServerConfig) *Server {
	if sc.Logger == nil {
		sc.Logger = infra.NopLogger()
	}
	if sc.Hub == nil {
		sc.Hub = NewWSHub(sc.Logger)
	}
	if sc.Registry == nil {
		sc.Registry = prometheus.NewRegistry()
	}
	srv := &Server{
		cfg:      sc.Config,
		ctrl:     sc.Controller,
		bridge:   sc.Bridge,
		hub:      sc.Hub,
		registry: sc.Registry,
		logger:   sc.Logger,
		version:  sc.Version,
		started:  time.Now(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// ListenAndServe runs the HTTP server and the WebSocket hub until ctx is
// done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.actionTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("api server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// actionTimeout bounds a single request. Actions that wait on a wallet
// connect prompt may take up to the prompt timeout.
func (s *Server) actionTimeout() time.Duration {
	d := 2 * time.Minute
	if s.cfg != nil && s.cfg.API.PromptTimeout > 0 {
		d = s.cfg.API.PromptTimeout
	}
	return d + 30*time.Second
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", infra.MetricsHandler(s.registry))

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket must not sit behind the request timeout.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.actionTimeout()))

			r.Get("/health", s.handleHealth)

			// Reads
			r.Get("/state", s.handleState)
			r.Get("/rate", s.handleRate)
			r.Get("/banks", s.handleBanks)
			r.Get("/journal", s.handleJournal)
			r.Get("/prompts", s.handlePrompts)

			// Entry
			r.Post("/mode", s.handleSetMode)
			r.Post("/asset", s.handleSetAsset)
			r.Post("/amount", s.handleEditAmount)
			r.Post("/amount/quick", s.handleQuickAmount)
			r.Post("/amount/max", s.handleMaxAmount)
			r.Post("/proceed", s.handleProceed)
			r.Post("/back", s.handleBack)
			r.Post("/reset", s.handleReset)
			r.Post("/notice/dismiss", s.handleDismissNotice)

			// Sell
			r.Post("/bank", s.handleSetBank)
			r.Post("/bank/verify", s.handleRetryVerification)
			r.Post("/bank/confirm", s.handleConfirmBank)
			r.Post("/offramp/submit", s.handleSubmitOfframp)
			r.Post("/offramp/settled", s.handleSettled)

			// Buy
			r.Post("/onramp/contact", s.handleSetContact)
			r.Post("/onramp/submit", s.handleSubmitOnramp)
			r.Post("/payment/open", s.handleOpenPayment)

			// Wallet
			r.Post("/wallet/connect", s.handleConnectWallet)
			r.Post("/wallet/disconnect", s.handleDisconnectWallet)

			// Browser answers
			r.Post("/wallet/connected", s.handleWalletConnected)
			r.Post("/wallet/transfer/{token}/finish", s.handleTransferFinish)
			r.Post("/wallet/transfer/{token}/cancel", s.handleTransferCancel)
			r.Post("/payment/{token}/complete", s.handlePaymentAnswer(true))
			r.Post("/payment/{token}/cancel", s.handlePaymentAnswer(false))

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/secrets", s.handleGetSecrets)
		})
	})

	return r
}

// requestLogger logs one line per request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ModeRequest is the body for POST /api/v1/mode.
type ModeRequest struct {
	Mode models.Mode `json:"mode"`
}

// AssetRequest is the body for POST /api/v1/asset.
type AssetRequest struct {
	Symbol string `json:"symbol"`
}

// AmountRequest is the body for POST /api/v1/amount and /amount/quick.
type AmountRequest struct {
	Field quote.Field `json:"field,omitempty"` // "asset" or "fiat"
	Value string      `json:"value"`
}

// BankRequest is the body for POST /api/v1/bank.
type BankRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
}

// SettledRequest is the body for POST /api/v1/offramp/settled.
type SettledRequest struct {
	Reference string `json:"reference,omitempty"`
}

// ContactRequest is the body for POST /api/v1/onramp/contact.
type ContactRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ConnectedRequest is the body for POST /api/v1/wallet/connected. Without
// a token it announces a wallet the browser already has connected.
type ConnectedRequest struct {
	Token     string            `json:"token,omitempty"`
	Addresses models.AddressSet `json:"addresses"`
	Providers []string          `json:"providers,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// RateResponse is returned by GET /api/v1/rate.
type RateResponse struct {
	models.RateSnapshot
	Display *RateDisplay `json:"display,omitempty"`
}

// RateDisplay carries preformatted rate strings.
type RateDisplay struct {
	MarketRate string `json:"market_rate"`
	FlatFee    string `json:"flat_fee"`
	Change24h  string `json:"change_24h"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Uptime    string `json:"uptime"`
	State     string `json:"state"`
	WSClients int    `json:"ws_clients"`
	Prompts   int    `json:"pending_prompts"`
}

// ============================================================
// Reads
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Version:   s.version,
			Uptime:    time.Since(s.started).Truncate(time.Second).String(),
			State:     string(s.ctrl.State().State),
			WSClients: s.hub.ClientCount(),
			Prompts:   len(s.bridge.Pending()),
		},
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.ctrl.State()})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.State().Rate
	resp := RateResponse{RateSnapshot: snap}
	if snap.Rate != nil {
		resp.Display = &RateDisplay{
			MarketRate: utils.FormatNGN(snap.Rate.MarketRate),
			FlatFee:    utils.FormatNGN(snap.Rate.FlatFee),
			Change24h:  utils.FormatPct(snap.Rate.Change24h),
		}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleBanks reloads the bank list. A failed load still returns the view
// with its banks error so the client can offer a retry.
func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.LoadBanks(r.Context()); err != nil {
		v := s.ctrl.State()
		writeJSON(w, http.StatusBadGateway, APIResponse{Success: false, Data: v, Error: v.BanksError})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.ctrl.State().Banks})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	j := s.ctrl.Journal()
	if attempt := r.URL.Query().Get("attempt"); attempt != "" {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: j.ForAttempt(attempt)})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: j.Recent(limit)})
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.bridge.Pending()})
}

// ============================================================
// Entry actions
// ============================================================

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be sell or buy")
		return
	}
	s.act(w, s.ctrl.SetMode(req.Mode))
}

func (s *Server) handleSetAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if !decode(w, r, &req) {
		return
	}
	s.act(w, s.ctrl.SetAsset(req.Symbol))
}

func (s *Server) handleEditAmount(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Field.Valid() {
		writeError(w, http.StatusBadRequest, "field must be asset or fiat")
		return
	}
	s.act(w, s.ctrl.EditAmount(req.Field, req.Value))
}

func (s *Server) handleQuickAmount(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	s.act(w, s.ctrl.ApplyQuickAmount(req.Value))
}

func (s *Server) handleMaxAmount(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.ApplyMaxAmount())
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.Proceed(r.Context()))
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.Back())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.Reset())
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	s.ctrl.DismissNotice()
	s.act(w, nil)
}

// ============================================================
// Sell actions
// ============================================================

func (s *Server) handleSetBank(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if !decode(w, r, &req) {
		return
	}
	s.act(w, s.ctrl.SetBankDetails(req.BankCode, req.AccountNumber))
}

func (s *Server) handleRetryVerification(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.RetryVerification())
}

func (s *Server) handleConfirmBank(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.ConfirmBank())
}

func (s *Server) handleSubmitOfframp(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.SubmitOfframp(r.Context()))
}

func (s *Server) handleSettled(w http.ResponseWriter, r *http.Request) {
	var req SettledRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	s.act(w, s.ctrl.MarkSettled(req.Reference))
}

// ============================================================
// Buy actions
// ============================================================

func (s *Server) handleSetContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decode(w, r, &req) {
		return
	}
	s.act(w, s.ctrl.SetContact(req.Email, req.Phone))
}

func (s *Server) handleSubmitOnramp(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.SubmitOnramp(r.Context()))
}

func (s *Server) handleOpenPayment(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.OpenPayment())
}

// ============================================================
// Wallet actions
// ============================================================

func (s *Server) handleConnectWallet(w http.ResponseWriter, r *http.Request) {
	_, err := s.ctrl.ConnectWallet(r.Context())
	s.act(w, err)
}

func (s *Server) handleDisconnectWallet(w http.ResponseWriter, r *http.Request) {
	s.act(w, s.ctrl.DisconnectWallet(r.Context()))
}

// ============================================================
// Browser answers
// ============================================================

func (s *Server) handleWalletConnected(w http.ResponseWriter, r *http.Request) {
	var req ConnectedRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		s.bridge.ReportProviders(req.Providers)
		s.bridge.Announce(req.Addresses)
		writeJSON(w, http.StatusOK, APIResponse{Success: true})
		return
	}
	s.answer(w, s.bridge.AnswerConnect(req.Token, bridge.ConnectAnswer{
		Addresses: req.Addresses,
		Providers: req.Providers,
		Error:     req.Error,
	}))
}

func (s *Server) handleTransferFinish(w http.ResponseWriter, r *http.Request) {
	var ans bridge.TransferAnswer
	if !decode(w, r, &ans) {
		return
	}
	if ans.TxID == "" {
		writeError(w, http.StatusBadRequest, "tx_id is required")
		return
	}
	s.answer(w, s.bridge.AnswerTransfer(chi.URLParam(r, "token"), ans))
}

func (s *Server) handleTransferCancel(w http.ResponseWriter, r *http.Request) {
	var ans bridge.TransferAnswer
	if r.ContentLength != 0 && !decode(w, r, &ans) {
		return
	}
	ans.TxID = ""
	ans.Cancelled = ans.Error == ""
	s.answer(w, s.bridge.AnswerTransfer(chi.URLParam(r, "token"), ans))
}

func (s *Server) handlePaymentAnswer(completed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.answer(w, s.bridge.AnswerPayment(chi.URLParam(r, "token"), completed))
	}
}

// answer reports a delivered browser answer. The flow result arrives
// asynchronously over the WebSocket.
func (s *Server) answer(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, APIResponse{Success: true})
}

// ============================================================
// Helpers
// ============================================================

// act writes the view after an action. A failed action carries the same
// view so the client can render the notice next to the error.
func (s *Server) act(w http.ResponseWriter, err error) {
	v := s.ctrl.State()
	if err == nil {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: v})
		return
	}
	msg := err.Error()
	switch {
	case errors.Is(err, flow.ErrWalletRequired) && v.WalletError != "":
		msg = v.WalletError
	case v.Notice != "":
		msg = v.Notice
	}
	writeJSON(w, statusFor(err), APIResponse{Success: false, Data: v, Error: msg})
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrWrongState),
		errors.Is(err, flow.ErrNoBack),
		errors.Is(err, flow.ErrSignaturePending),
		errors.Is(err, flow.ErrBusy),
		errors.Is(err, flow.ErrStale):
		return http.StatusConflict
	case errors.Is(err, flow.ErrUnknownOrder),
		errors.Is(err, bridge.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrOrderRejected):
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

// decode reads a JSON body into v and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
