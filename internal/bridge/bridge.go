// Package bridge carries wallet and payment-widget requests to the browser
// that hosts them and turns the browser's answers back into token-tagged
// completions. Each request is parked under its correlation token with a
// one-slot result channel; the answer endpoint delivers into that channel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/flow"
	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/internal/wallet"
	"github.com/seenimoa/stackswap/pkg/models"
)

var (
	// ErrPromptTimeout is returned when the browser does not answer a
	// connect prompt in time.
	ErrPromptTimeout = errors.New("browser did not answer in time")

	// ErrUnknownToken is returned for answers with no pending request.
	ErrUnknownToken = errors.New("no pending request for token")

	// ErrConnectRejected is returned when the browser reports a failed
	// wallet connection.
	ErrConnectRejected = errors.New("wallet connection rejected")
)

// Prompt kinds pushed to the browser.
const (
	KindConnect    = "wallet.connect"
	KindDisconnect = "wallet.disconnect"
	KindTransfer   = "wallet.transfer"
	KindPayment    = "payment.open"
)

// Prompt is one request for the browser.
type Prompt struct {
	Kind    string    `json:"kind"`
	Token   string    `json:"token"`
	Data    any       `json:"data,omitempty"`
	Created time.Time `json:"created"`
}

// Notifier pushes prompts to the browser.
type Notifier interface {
	Notify(p Prompt)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(p Prompt)

func (f NotifierFunc) Notify(p Prompt) { f(p) }

// ConnectAnswer is the browser's reply to a connect prompt.
type ConnectAnswer struct {
	Addresses models.AddressSet `json:"addresses"`
	Providers []string          `json:"providers,omitempty"` // provider globals seen in the page
	Error     string            `json:"error,omitempty"`
}

// TransferAnswer is the browser's reply to a transfer prompt.
type TransferAnswer struct {
	TxID      string `json:"tx_id,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Error     string `json:"error,omitempty"`
}

type pending struct {
	prompt   Prompt
	connect  chan ConnectAnswer
	transfer chan TransferAnswer
	payment  chan bool
}

// Bridge holds the browser-side session and every unanswered prompt.
type Bridge struct {
	notifier Notifier
	timeout  time.Duration
	logger   *logrus.Logger

	mu        sync.Mutex
	connected bool
	addrs     models.AddressSet
	markers   []string
	pending   map[string]*pending
}

// New creates a bridge. timeout bounds the wait for a connect answer.
func New(notifier Notifier, timeout time.Duration, logger *logrus.Logger) *Bridge {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Bridge{
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		pending:  make(map[string]*pending),
	}
}

// Wallet returns the bridge as a wallet provider.
func (b *Bridge) Wallet() wallet.Provider { return (*remoteWallet)(b) }

// Widget returns the bridge as a payment widget.
func (b *Bridge) Widget() flow.PaymentWidget { return (*remoteWidget)(b) }

// Pending returns the unanswered prompts, oldest first, so a newly
// connected browser can pick them up.
func (b *Bridge) Pending() []Prompt {
	b.mu.Lock()
	out := make([]Prompt, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.prompt)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Announce records a wallet the browser already has connected, so a
// silent restore can adopt it without a prompt.
func (b *Bridge) Announce(addrs models.AddressSet) {
	b.mu.Lock()
	b.addrs = addrs
	b.connected = addrs.Primary() != ""
	b.mu.Unlock()
}

// ReportProviders records the wallet provider markers the page exposes.
func (b *Bridge) ReportProviders(markers []string) {
	if len(markers) == 0 {
		return
	}
	b.mu.Lock()
	b.markers = append([]string(nil), markers...)
	b.mu.Unlock()
}

// Markers returns the last reported provider markers. It feeds
// wallet.CapabilityDetector.
func (b *Bridge) Markers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.markers...)
}

// ════════════════════════════════════════════════════════════════════
// Answers
// ════════════════════════════════════════════════════════════════════

// AnswerConnect delivers the browser's reply to a connect prompt.
func (b *Bridge) AnswerConnect(token string, ans ConnectAnswer) error {
	p, err := b.take(token, KindConnect)
	if err != nil {
		return err
	}
	p.connect <- ans
	return nil
}

// AnswerTransfer delivers the browser's reply to a transfer prompt.
func (b *Bridge) AnswerTransfer(token string, ans TransferAnswer) error {
	p, err := b.take(token, KindTransfer)
	if err != nil {
		return err
	}
	p.transfer <- ans
	return nil
}

// AnswerPayment delivers the widget's outcome.
func (b *Bridge) AnswerPayment(token string, completed bool) error {
	p, err := b.take(token, KindPayment)
	if err != nil {
		return err
	}
	p.payment <- completed
	return nil
}

// take removes the pending prompt so each prompt is answered at most once.
func (b *Bridge) take(token, kind string) (*pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[token]
	if !ok || p.prompt.Kind != kind {
		return nil, fmt.Errorf("%s: %w", token, ErrUnknownToken)
	}
	delete(b.pending, token)
	return p, nil
}

func (b *Bridge) park(p *pending) {
	b.mu.Lock()
	b.pending[p.prompt.Token] = p
	b.mu.Unlock()
	if b.notifier != nil {
		b.notifier.Notify(p.prompt)
	}
}

func (b *Bridge) unpark(token string) {
	b.mu.Lock()
	delete(b.pending, token)
	b.mu.Unlock()
}

// ════════════════════════════════════════════════════════════════════
// Wallet Provider
// ════════════════════════════════════════════════════════════════════

type remoteWallet Bridge

func (w *remoteWallet) bridge() *Bridge { return (*Bridge)(w) }

// Connect prompts the browser and waits for its answer.
func (w *remoteWallet) Connect(ctx context.Context) error {
	b := w.bridge()
	p := &pending{
		prompt:  Prompt{Kind: KindConnect, Token: uuid.NewString(), Created: time.Now()},
		connect: make(chan ConnectAnswer, 1),
	}
	b.park(p)
	defer b.unpark(p.prompt.Token)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case ans := <-p.connect:
		if ans.Error != "" {
			return fmt.Errorf("%w: %s", ErrConnectRejected, ans.Error)
		}
		b.ReportProviders(ans.Providers)
		b.Announce(ans.Addresses)
		return nil
	case <-timer.C:
		b.logger.WithField("token", p.prompt.Token).Warn("wallet connect prompt timed out")
		return ErrPromptTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *remoteWallet) Disconnect() {
	b := w.bridge()
	b.Announce(models.AddressSet{})
	if b.notifier != nil {
		b.notifier.Notify(Prompt{Kind: KindDisconnect, Token: uuid.NewString(), Created: time.Now()})
	}
}

func (w *remoteWallet) IsConnected(ctx context.Context) bool {
	b := w.bridge()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (w *remoteWallet) StoredAddresses(ctx context.Context) (models.AddressSet, error) {
	b := w.bridge()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addrs, nil
}

// RequestTransfer parks the request and returns at once. done runs when the
// browser answers or ctx ends. Transfers have no timeout.
func (w *remoteWallet) RequestTransfer(ctx context.Context, req wallet.TransferRequest, done func(wallet.TransferResult)) {
	b := w.bridge()
	p := &pending{
		prompt:   Prompt{Kind: KindTransfer, Token: req.Token, Data: req, Created: time.Now()},
		transfer: make(chan TransferAnswer, 1),
	}
	b.park(p)

	go func() {
		defer b.unpark(req.Token)
		select {
		case ans := <-p.transfer:
			res := wallet.TransferResult{Token: req.Token, TxID: ans.TxID, Cancelled: ans.Cancelled}
			if ans.Error != "" {
				res.Err = errors.New(ans.Error)
			}
			if !res.Succeeded() && res.Err == nil {
				res.Cancelled = true
			}
			b.logger.WithFields(logrus.Fields{
				"token":     req.Token,
				"tx_id":     ans.TxID,
				"cancelled": res.Cancelled,
			}).Info("transfer answered")
			done(res)
		case <-ctx.Done():
			done(wallet.TransferResult{Token: req.Token, Err: ctx.Err()})
		}
	}()
}

// ════════════════════════════════════════════════════════════════════
// Payment Widget
// ════════════════════════════════════════════════════════════════════

type remoteWidget Bridge

func (w *remoteWidget) Open(ctx context.Context, req flow.PaymentRequest, done func(flow.PaymentResult)) {
	b := (*Bridge)(w)
	p := &pending{
		prompt:  Prompt{Kind: KindPayment, Token: req.Token, Data: req.Config, Created: time.Now()},
		payment: make(chan bool, 1),
	}
	b.park(p)

	go func() {
		select {
		case completed := <-p.payment:
			b.unpark(req.Token)
			done(flow.PaymentResult{Token: req.Token, Completed: completed})
		case <-ctx.Done():
			b.unpark(req.Token)
			b.logger.WithField("token", req.Token).Debug("payment prompt withdrawn")
			done(flow.PaymentResult{Token: req.Token})
		}
	}()
}
