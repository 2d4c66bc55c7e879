package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/bankverify"
	"github.com/seenimoa/stackswap/internal/bridge"
	"github.com/seenimoa/stackswap/internal/config"
	"github.com/seenimoa/stackswap/internal/events"
	"github.com/seenimoa/stackswap/internal/flow"
	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/internal/liquidity"
	"github.com/seenimoa/stackswap/internal/rates"
	"github.com/seenimoa/stackswap/internal/wallet"
	"github.com/seenimoa/stackswap/pkg/models"
)

const testAddress = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// fakeBackend serves the conversion backend endpoints.
type fakeBackend struct {
	mu       sync.Mutex
	offramps int
	onramps  int
}

func (b *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/offramp/rate", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, map[string]any{
			"marketRateNGN": 1847.35,
			"flatFeeNGN":    100,
			"priceUSD":      1.1,
			"change24h":     2.5,
		})
	})
	r.Get("/api/offramp/banks", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, []map[string]string{{"code": "058", "name": "GTBank"}})
	})
	r.Post("/api/offramp/verify-account", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, map[string]string{"accountName": "ADA OKAFOR"})
	})
	r.Get("/api/offramp/liquidity", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, map[string]any{"balanceNGN": 10_000_000})
	})
	r.Post("/api/offramp/initialize", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.offramps++
		b.mu.Unlock()
		envelope(w, http.StatusOK, map[string]any{
			"transactionReference": "OFF-1",
			"tokenAmount":          100,
			"depositInstructions": map[string]any{
				"sendTo":           "SP3DEPOSIT",
				"memo":             "OFF-1",
				"expiresInMinutes": 30,
			},
		})
	})
	r.Post("/api/onramp/initialize", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.onramps++
		b.mu.Unlock()
		envelope(w, http.StatusOK, map[string]any{
			"transactionId":    "ON-1",
			"paymentReference": "ON-1",
			"totalPayableNGN":  5100,
			"monnifyConfig":    map[string]any{"reference": "ON-1", "amount": 5000},
		})
	})
	return r
}

func envelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}) //nolint:errcheck
}

type testEnv struct {
	ts     *httptest.Server
	ctrl   *flow.Controller
	bridge *bridge.Bridge
	be     *fakeBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := infra.NopLogger()

	be := &fakeBackend{}
	backendSrv := httptest.NewServer(be.handler())
	t.Cleanup(backendSrv.Close)

	registry := prometheus.NewRegistry()
	metrics := infra.NewMetrics(registry)
	client := backend.NewClient(backend.ClientConfig{
		BaseURL: backendSrv.URL,
		Timeout: 5 * time.Second,
		Metrics: metrics,
		Logger:  logger,
	})

	hub := NewWSHub(logger)
	br := bridge.New(hub, 5*time.Second, logger)
	bus := events.NewBus(logger)
	bus.Subscribe(hub)

	opts := flow.DefaultOptions()
	opts.VerifyDebounce = 0
	opts.BuyLaunchAt = time.Now().Add(-time.Hour)

	ctrl := flow.New(opts, flow.Deps{
		Orders:    client,
		Rates:     rates.NewCache(client, logger, metrics),
		Wallet:    wallet.NewManager(br.Wallet(), wallet.DetectorFunc(func() string { return "Leather" }), wallet.NewMemoryStore(), logger),
		Liquidity: liquidity.NewGate(client, liquidity.DefaultConfig(), logger, metrics),
		Verifier:  bankverify.NewVerifier(client, logger, metrics),
		Banks:     bankverify.NewDirectory(client, time.Hour),
		Payments:  br.Widget(),
		Events:    bus,
		Logger:    logger,
		Metrics:   metrics,
	})

	cfg := &config.Config{}
	cfg.Backend.APIKey = "sk-live-1234567890"
	cfg.API.PromptTimeout = 5 * time.Second

	srv := NewServer(ServerConfig{
		Config:     cfg,
		Controller: ctrl,
		Bridge:     br,
		Hub:        hub,
		Registry:   registry,
		Logger:     logger,
		Version:    "test",
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	require.NoError(t, ctrl.Start(ctx))

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		ctrl.Wait()
	})
	return &testEnv{ts: ts, ctrl: ctrl, bridge: br, be: be}
}

type viewResponse struct {
	Success bool      `json:"success"`
	Data    flow.View `json:"data"`
	Error   string    `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func (e *testEnv) view(t *testing.T, method, path string, body any) (int, viewResponse) {
	t.Helper()
	status, raw := e.do(t, method, path, body)
	var vr viewResponse
	require.NoError(t, json.Unmarshal(raw, &vr), string(raw))
	return status, vr
}

func (e *testEnv) state(t *testing.T) flow.View {
	t.Helper()
	status, vr := e.view(t, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, status)
	return vr.Data
}

// awaitPrompt polls the pending prompts until one of kind appears.
func (e *testEnv) awaitPrompt(t *testing.T, kind string) bridge.Prompt {
	t.Helper()
	var found bridge.Prompt
	require.Eventually(t, func() bool {
		_, raw := e.do(t, http.MethodGet, "/api/v1/prompts", nil)
		var resp struct {
			Data []bridge.Prompt `json:"data"`
		}
		if json.Unmarshal(raw, &resp) != nil {
			return false
		}
		for _, p := range resp.Data {
			if p.Kind == kind {
				found = p
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
	return found
}

// connectViaPrompt runs action, answers the wallet prompt it raises and
// returns the action's response.
func (e *testEnv) connectViaPrompt(t *testing.T, path string) (int, viewResponse) {
	t.Helper()
	type result struct {
		status int
		vr     viewResponse
	}
	done := make(chan result, 1)
	go func() {
		status, raw := e.do(t, http.MethodPost, path, nil)
		var vr viewResponse
		_ = json.Unmarshal(raw, &vr)
		done <- result{status, vr}
	}()

	p := e.awaitPrompt(t, bridge.KindConnect)
	status, _ := e.do(t, http.MethodPost, "/api/v1/wallet/connected", ConnectedRequest{
		Token:     p.Token,
		Addresses: models.AddressSet{STX: []models.AddressEntry{{Address: testAddress}}},
	})
	require.Equal(t, http.StatusAccepted, status)

	select {
	case r := <-done:
		return r.status, r.vr
	case <-time.After(5 * time.Second):
		t.Fatal("action did not return after the wallet answered")
		return 0, viewResponse{}
	}
}

// ════════════════════════════════════════════════════════════════════
// Reads
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	status, raw := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.True(t, resp.Success)
	require.Equal(t, "ok", resp.Data.Status)
	require.Equal(t, "test", resp.Data.Version)
	require.Equal(t, string(models.StateEntry), resp.Data.State)
}

func TestStateAndRate(t *testing.T) {
	env := newTestEnv(t)

	v := env.state(t)
	require.Equal(t, models.StateEntry, v.State)
	require.Equal(t, models.Sell, v.Mode)
	require.Equal(t, "100", v.Quote.AssetText)
	require.Equal(t, "184635", v.Quote.Fiat.String())

	status, raw := env.do(t, http.MethodGet, "/api/v1/rate", nil)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Data RateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Data.Rate)
	require.NotNil(t, resp.Data.Display)
	require.Equal(t, "₦1,847.35", resp.Data.Display.MarketRate)
	require.Equal(t, "₦100.00", resp.Data.Display.FlatFee)
}

func TestBanks(t *testing.T) {
	env := newTestEnv(t)
	status, raw := env.do(t, http.MethodGet, "/api/v1/banks", nil)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Data []models.Bank `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, []models.Bank{{Code: "058", Name: "GTBank"}}, resp.Data)
}

func TestJournalLimitValidation(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.do(t, http.MethodGet, "/api/v1/journal?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/journal?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.state(t)

	status, raw := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(raw), "stackswap_rate_refreshes_total")
	require.Contains(t, string(raw), "stackswap_backend_requests_total")
}

func TestConfigIsRedacted(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotContains(t, string(raw), "sk-live-1234567890")
	require.Contains(t, string(raw), redacted)

	status, raw = env.do(t, http.MethodGet, "/api/v1/config/secrets", nil)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Data []config.SecretStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotEmpty(t, resp.Data)
	require.True(t, resp.Data[0].IsSet)
	require.Equal(t, "sk-...890", resp.Data[0].Masked)
}

// ════════════════════════════════════════════════════════════════════
// Entry actions
// ════════════════════════════════════════════════════════════════════

func TestEditAmountValidation(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/amount", map[string]string{"field": "usd", "value": "1"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/amount", "not an object")
	require.Equal(t, http.StatusBadRequest, status)

	status, vr := env.view(t, http.MethodPost, "/api/v1/amount", AmountRequest{Field: "fiat", Value: "184635"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "100.0000", vr.Data.Quote.AssetText)

	status, vr = env.view(t, http.MethodPost, "/api/v1/amount/quick", AmountRequest{Value: "50"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "50", vr.Data.Quote.AssetText)

	status, vr = env.view(t, http.MethodPost, "/api/v1/amount/quick", AmountRequest{Value: "7"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.False(t, vr.Success)

	status, _ = env.do(t, http.MethodPost, "/api/v1/amount/max", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestModeAndBackConflicts(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/mode", ModeRequest{Mode: "swap"})
	require.Equal(t, http.StatusBadRequest, status)

	status, vr := env.view(t, http.MethodPost, "/api/v1/back", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, models.StateEntry, vr.Data.State)

	status, _ = env.do(t, http.MethodPost, "/api/v1/bank/confirm", nil)
	require.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/asset", AssetRequest{Symbol: "doge"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

// ════════════════════════════════════════════════════════════════════
// Flows
// ════════════════════════════════════════════════════════════════════

func TestSellFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	status, vr := env.connectViaPrompt(t, "/api/v1/proceed")
	require.Equal(t, http.StatusOK, status, vr.Error)
	require.Equal(t, models.StateSellBankDetails, vr.Data.State)
	require.Equal(t, testAddress, vr.Data.Session.Address)
	require.True(t, vr.Data.Liquidity.Sufficient)

	status, vr = env.view(t, http.MethodPost, "/api/v1/bank", BankRequest{BankCode: "058", AccountNumber: "0123456789"})
	require.Equal(t, http.StatusOK, status)
	require.Eventually(t, func() bool {
		v := env.state(t)
		return v.Claim.Verified && v.Claim.AccountName == "ADA OKAFOR"
	}, 3*time.Second, 10*time.Millisecond)

	status, vr = env.view(t, http.MethodPost, "/api/v1/bank/confirm", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.StateSellConfirm, vr.Data.State)

	status, vr = env.view(t, http.MethodPost, "/api/v1/offramp/submit", nil)
	require.Equal(t, http.StatusOK, status, vr.Error)
	require.Equal(t, models.StateSellAwaitingSignature, vr.Data.State)
	require.NotNil(t, vr.Data.PendingTransfer)
	require.Equal(t, int64(100_000_000), vr.Data.PendingTransfer.AmountMicro)
	token := vr.Data.PendingTransfer.Token

	p := env.awaitPrompt(t, bridge.KindTransfer)
	require.Equal(t, token, p.Token)

	status, vr = env.view(t, http.MethodPost, "/api/v1/back", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, models.StateSellAwaitingSignature, vr.Data.State)

	status, _ = env.do(t, http.MethodPost, "/api/v1/wallet/transfer/"+token+"/finish", map[string]string{})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/wallet/transfer/"+token+"/finish", bridge.TransferAnswer{TxID: "0xabc"})
	require.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		return env.state(t).State == models.StateSellOnChainPending
	}, 3*time.Second, 10*time.Millisecond)
	v := env.state(t)
	require.Equal(t, "https://explorer.hiro.so/txid/0xabc?chain=mainnet", v.ExplorerURL)

	status, _ = env.do(t, http.MethodPost, "/api/v1/wallet/transfer/"+token+"/finish", bridge.TransferAnswer{TxID: "0xdef"})
	require.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/offramp/settled", SettledRequest{Reference: "OFF-9"})
	require.Equal(t, http.StatusNotFound, status)

	status, vr = env.view(t, http.MethodPost, "/api/v1/offramp/settled", SettledRequest{Reference: "OFF-1"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.StateSuccess, vr.Data.State)

	status, vr = env.view(t, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.StateEntry, vr.Data.State)
}

func TestTransferCancelReturnsToConfirm(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.connectViaPrompt(t, "/api/v1/proceed")
	require.Equal(t, http.StatusOK, status)
	env.do(t, http.MethodPost, "/api/v1/bank", BankRequest{BankCode: "058", AccountNumber: "0123456789"})
	require.Eventually(t, func() bool { return env.state(t).Claim.Verified }, 3*time.Second, 10*time.Millisecond)
	env.do(t, http.MethodPost, "/api/v1/bank/confirm", nil)

	_, vr := env.view(t, http.MethodPost, "/api/v1/offramp/submit", nil)
	require.NotNil(t, vr.Data.PendingTransfer)

	status, _ = env.do(t, http.MethodPost, "/api/v1/wallet/transfer/"+vr.Data.PendingTransfer.Token+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		v := env.state(t)
		return v.State == models.StateSellConfirm && v.Notice == flow.MsgSignCancelled
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBuyFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/mode", ModeRequest{Mode: models.Buy})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/amount", AmountRequest{Field: "fiat", Value: "5000"})
	require.Equal(t, http.StatusOK, status)

	status, vr := env.connectViaPrompt(t, "/api/v1/proceed")
	require.Equal(t, http.StatusOK, status, vr.Error)
	require.Equal(t, models.StateBuyDetails, vr.Data.State)

	status, vr = env.view(t, http.MethodPost, "/api/v1/onramp/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, flow.MsgContactRequired, vr.Error)

	status, _ = env.do(t, http.MethodPost, "/api/v1/onramp/contact", ContactRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, status)

	status, vr = env.view(t, http.MethodPost, "/api/v1/onramp/submit", nil)
	require.Equal(t, http.StatusOK, status, vr.Error)
	require.Equal(t, models.StateBuyPayment, vr.Data.State)

	p := env.awaitPrompt(t, bridge.KindPayment)
	status, _ = env.do(t, http.MethodPost, "/api/v1/payment/"+p.Token+"/complete", nil)
	require.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		return env.state(t).State == models.StateSuccess
	}, 3*time.Second, 10*time.Millisecond)

	status, _ = env.do(t, http.MethodPost, "/api/v1/payment/"+p.Token+"/cancel", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestLeavingPaymentWithdrawsPrompt(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/mode", ModeRequest{Mode: models.Buy})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/amount", AmountRequest{Field: "fiat", Value: "5000"})
	require.Equal(t, http.StatusOK, status)
	status, vr := env.connectViaPrompt(t, "/api/v1/proceed")
	require.Equal(t, http.StatusOK, status, vr.Error)
	status, _ = env.do(t, http.MethodPost, "/api/v1/onramp/contact", ContactRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, status)
	status, vr = env.view(t, http.MethodPost, "/api/v1/onramp/submit", nil)
	require.Equal(t, http.StatusOK, status, vr.Error)

	p := env.awaitPrompt(t, bridge.KindPayment)

	status, vr = env.view(t, http.MethodPost, "/api/v1/back", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.StateBuyDetails, vr.Data.State)
	status, vr = env.view(t, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.StateEntry, vr.Data.State)

	require.Eventually(t, func() bool {
		return len(env.bridge.Pending()) == 0
	}, 3*time.Second, 10*time.Millisecond)

	status, _ = env.do(t, http.MethodPost, "/api/v1/payment/"+p.Token+"/complete", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, models.StateEntry, env.state(t).State)
}

func TestConnectRejectedShowsWalletError(t *testing.T) {
	env := newTestEnv(t)

	done := make(chan viewResponse, 1)
	go func() {
		_, raw := env.do(t, http.MethodPost, "/api/v1/wallet/connect", nil)
		var vr viewResponse
		_ = json.Unmarshal(raw, &vr)
		done <- vr
	}()

	p := env.awaitPrompt(t, bridge.KindConnect)
	status, _ := env.do(t, http.MethodPost, "/api/v1/wallet/connected", ConnectedRequest{Token: p.Token, Error: "closed"})
	require.Equal(t, http.StatusAccepted, status)

	vr := <-done
	require.False(t, vr.Success)
	require.Equal(t, flow.MsgConnectFailed, vr.Error)
	require.False(t, vr.Data.Session.Connected)
}

func TestAnnounceRestoresWithoutPrompt(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/wallet/connected", ConnectedRequest{
		Addresses: models.AddressSet{STX: []models.AddressEntry{{Address: testAddress}}},
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.bridge.Wallet().IsConnected(context.Background()))
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func TestWebSocketStreamsStateAndPrompts(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.Equal(t, MsgTypeState, read().Type)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "ping"}))
	require.Equal(t, MsgTypePong, read().Type)

	go env.do(t, http.MethodPost, "/api/v1/wallet/connect", nil)

	var prompt WSMessage
	for prompt.Type != MsgTypePrompt {
		prompt = read()
	}
	data, ok := prompt.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, bridge.KindConnect, data["kind"])

	status, _ := env.do(t, http.MethodPost, "/api/v1/wallet/connected", ConnectedRequest{
		Token:     data["token"].(string),
		Addresses: models.AddressSet{STX: []models.AddressEntry{{Address: testAddress}}},
	})
	require.Equal(t, http.StatusAccepted, status)

	for {
		msg := read()
		if msg.Type == string(events.WalletConnected) {
			break
		}
	}
	require.True(t, env.ctrl.State().Session.Connected)
}
