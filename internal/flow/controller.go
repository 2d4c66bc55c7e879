// Package flow is the conversion and settlement controller. It owns the
// flow state of one user session plus the order, bank claim and liquidity
// result tied to it, and drives the external collaborators (rates, wallet,
// backend, payment widget) through token-checked request/response rounds.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/bankverify"
	"github.com/seenimoa/stackswap/internal/events"
	"github.com/seenimoa/stackswap/internal/expiry"
	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/internal/liquidity"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/internal/rates"
	"github.com/seenimoa/stackswap/internal/wallet"
	"github.com/seenimoa/stackswap/pkg/models"
	"github.com/seenimoa/stackswap/pkg/utils"
)

// User-facing notices.
const (
	MsgSignCancelled    = "Transaction cancelled in wallet."
	MsgSignFailed       = "Wallet could not sign the transfer."
	MsgPaymentCancelled = "Payment cancelled."
	MsgOfframpFailed    = "Failed to create transaction."
	MsgOnrampFailed     = "Failed to initialize payment."
	MsgServerError      = "Server error. Please try again."
	MsgContactRequired  = "Connect wallet and enter email."
	MsgNoAddress        = "No address found. Did you approve the connection in your wallet?"
	MsgConnectFailed    = "Could not connect. Make sure Leather or Xverse is installed."
	MsgRateUnavailable  = "Rate unavailable. Please try again shortly."
	MsgAmountRequired   = "Enter an amount."
	MsgBankNotVerified  = "Verify your bank account to continue."
	MsgSignaturePending = "Approve or cancel the transfer in your wallet first."
	MsgBuyLocked        = "Buying is not available yet."
	MsgUnsupportedAsset = "This asset is not supported."
	MsgStaleInput       = "Your input changed; please try again."
	MsgWalletRequired   = "Connect your wallet to continue."
	MsgOrderUnknown     = "Unknown order."
)

// OrderService opens orders on the backend. *backend.Client satisfies it.
type OrderService interface {
	InitializeOfframp(ctx context.Context, req backend.OfframpRequest) (*models.OfframpOrder, error)
	InitializeOnramp(ctx context.Context, req backend.OnrampRequest) (*models.OnrampOrder, error)
}

// Options are the controller's static settings.
type Options struct {
	Assets         []models.Asset // supported assets; the first is the default
	MicroUnits     int64
	Precision      quote.Precision
	DefaultAmount  string
	QuickAmounts   []string
	Network        models.Network
	ExplorerURL    string
	BuyLaunchAt    time.Time
	VerifyDebounce time.Duration
	RatePoll       time.Duration
}

// DefaultOptions mirrors the production configuration.
func DefaultOptions() Options {
	return Options{
		Assets:         []models.Asset{models.STX},
		MicroUnits:     1_000_000,
		Precision:      quote.DefaultPrecision,
		DefaultAmount:  "100",
		QuickAmounts:   []string{"10", "50", "100", "500"},
		Network:        models.Mainnet,
		ExplorerURL:    "https://explorer.hiro.so",
		BuyLaunchAt:    time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		VerifyDebounce: 300 * time.Millisecond,
		RatePoll:       30 * time.Second,
	}
}

// Deps are the controller's collaborators.
type Deps struct {
	Orders    OrderService
	Rates     *rates.Cache
	Wallet    *wallet.Manager
	Liquidity *liquidity.Gate
	Verifier  *bankverify.Verifier
	Banks     *bankverify.Directory
	Payments  PaymentWidget
	Events    events.Sink
	Logger    *logrus.Logger
	Metrics   *infra.Metrics
	Now       func() time.Time
}

// ════════════════════════════════════════════════════════════════════
// Controller
// ════════════════════════════════════════════════════════════════════

// Controller is the single owner of one session's flow state. Its mutex is
// never held across a call to a collaborator; results of such calls come
// back through methods that check the generation or token they were issued
// under and drop anything stale.
type Controller struct {
	opts    Options
	orders  OrderService
	rates   *rates.Cache
	wallet  *wallet.Manager
	gate    *liquidity.Gate
	verify  *bankverify.Verifier
	banks   *bankverify.Directory
	pay     PaymentWidget
	sink    events.Sink
	logger  *logrus.Logger
	metrics *infra.Metrics
	now     func() time.Time
	journal *Journal

	baseCtx context.Context
	bg      sync.WaitGroup

	mu         sync.Mutex
	state      models.FlowState
	attempt    string
	asset      models.Asset
	editor     *quote.Editor
	entryGen   uint64 // bumped on every amount, mode or asset change
	liquidity  *models.LiquidityCheckResult
	liqGen     uint64 // entryGen the liquidity result was computed for
	proceeding bool
	claim      models.BankAccountClaim
	claimGen   uint64
	banksErr   string
	banksBusy  bool
	submitGen  uint64
	submitting bool
	offramp    *models.OfframpOrder
	onramp     *models.OnrampOrder
	contact    models.Contact
	signReq    *wallet.TransferRequest
	payReq     *PaymentRequest
	payStop    context.CancelFunc
	notice     string
	walletErr  string
	expiryTick *expiry.Tick
	expiryStop context.CancelFunc
}

// New creates a controller on entry with default amounts.
func New(opts Options, deps Deps) *Controller {
	def := DefaultOptions()
	if len(opts.Assets) == 0 {
		opts.Assets = def.Assets
	}
	if opts.MicroUnits <= 0 {
		opts.MicroUnits = def.MicroUnits
	}
	if opts.Precision == (quote.Precision{}) {
		opts.Precision = def.Precision
	}
	if opts.DefaultAmount == "" {
		opts.DefaultAmount = def.DefaultAmount
	}
	if opts.Network == "" {
		opts.Network = def.Network
	}
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = def.ExplorerURL
	}
	if opts.RatePoll <= 0 {
		opts.RatePoll = def.RatePoll
	}
	if deps.Logger == nil {
		deps.Logger = infra.NopLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Events == nil {
		deps.Events = events.SinkFunc(func(context.Context, events.Event) error { return nil })
	}

	c := &Controller{
		opts:    opts,
		orders:  deps.Orders,
		rates:   deps.Rates,
		wallet:  deps.Wallet,
		gate:    deps.Liquidity,
		verify:  deps.Verifier,
		banks:   deps.Banks,
		pay:     deps.Payments,
		sink:    deps.Events,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		now:     deps.Now,
		journal: NewJournal(),
		baseCtx: context.Background(),
		state:   models.StateEntry,
		attempt: uuid.NewString(),
		asset:   opts.Assets[0],
		editor:  quote.NewEditor(models.Sell, opts.DefaultAmount, opts.Precision),
	}

	if c.rates != nil {
		c.rates.OnChange(c.onRate)
	}
	return c
}

// Start restores the wallet session and warms the rate cache concurrently.
// Neither failure is fatal.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	asset := c.asset
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if c.wallet != nil {
			c.wallet.Restore(gctx)
		}
		return nil
	})
	g.Go(func() error {
		if c.rates != nil {
			c.rates.Refresh(gctx, asset)
		}
		return nil
	})
	return g.Wait()
}

// Run starts the controller and polls rates until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	if c.rates != nil {
		c.rates.Run(ctx, c.opts.RatePoll, c.currentAsset)
	} else {
		<-ctx.Done()
	}
	c.bg.Wait()
	return nil
}

// Wait blocks until background verifications and timers have returned.
func (c *Controller) Wait() { c.bg.Wait() }

// Journal returns the transition audit trail.
func (c *Controller) Journal() *Journal { return c.journal }

// Options returns the controller's settings.
func (c *Controller) Options() Options { return c.opts }

func (c *Controller) currentAsset() models.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asset
}

// ════════════════════════════════════════════════════════════════════
// View
// ════════════════════════════════════════════════════════════════════

// View is a consistent snapshot of everything the UI renders.
type View struct {
	State           models.FlowState             `json:"state"`
	Attempt         string                       `json:"attempt"`
	Mode            models.Mode                  `json:"mode"`
	Asset           models.Asset                 `json:"asset"`
	Quote           quote.Quote                  `json:"quote"`
	Rate            models.RateSnapshot          `json:"rate"`
	Session         models.Session               `json:"session"`
	Claim           models.BankAccountClaim      `json:"bank"`
	Banks           []models.Bank                `json:"banks,omitempty"`
	BanksError      string                       `json:"banks_error,omitempty"`
	Liquidity       *models.LiquidityCheckResult `json:"liquidity,omitempty"`
	Offramp         *models.OfframpOrder         `json:"offramp,omitempty"`
	Onramp          *models.OnrampOrder          `json:"onramp,omitempty"`
	Contact         models.Contact               `json:"contact"`
	ExplorerURL     string                       `json:"explorer_url,omitempty"`
	Expiry          *expiry.Tick                 `json:"expiry,omitempty"`
	PendingTransfer *wallet.TransferRequest      `json:"pending_transfer,omitempty"`
	PendingPayment  *PaymentRequest              `json:"pending_payment,omitempty"`
	Notice          string                       `json:"notice,omitempty"`
	WalletError     string                       `json:"wallet_error,omitempty"`
	Busy            bool                         `json:"busy"`
	CanBack         bool                         `json:"can_back"`
	CanReset        bool                         `json:"can_reset"`
	BuyAvailable    bool                         `json:"buy_available"`
	BuyCountdown    string                       `json:"buy_countdown,omitempty"`
	QuickAmounts    []string                     `json:"quick_amounts"`
}

// State returns the current view.
func (c *Controller) State() View {
	var snap models.RateSnapshot
	var session models.Session
	var banks []models.Bank

	c.mu.Lock()
	asset := c.asset
	c.mu.Unlock()

	if c.rates != nil {
		snap = c.rates.Snapshot(asset)
	}
	if c.wallet != nil {
		session = c.wallet.Session()
	}
	if c.banks != nil {
		banks = c.banks.Cached()
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	_, canBack := Predecessor(c.state)
	v := View{
		State:        c.state,
		Attempt:      c.attempt,
		Mode:         c.editor.Mode(),
		Asset:        c.asset,
		Quote:        c.editor.Quote(snap.Rate),
		Rate:         snap,
		Session:      session,
		Claim:        c.claim,
		Banks:        banks,
		BanksError:   c.banksErr,
		Liquidity:    c.validLiquidityLocked(),
		Contact:      c.contact,
		Notice:       c.notice,
		WalletError:  c.walletErr,
		Busy:         c.proceeding || c.submitting,
		CanBack:      canBack,
		CanReset:     CanReset(c.state),
		BuyAvailable: !now.Before(c.opts.BuyLaunchAt),
		BuyCountdown: utils.FormatCountdown(c.opts.BuyLaunchAt.Sub(now)),
		QuickAmounts: append([]string(nil), c.opts.QuickAmounts...),
	}
	if c.offramp != nil {
		o := *c.offramp
		v.Offramp = &o
		if o.TxID != "" {
			v.ExplorerURL = utils.ExplorerURL(c.opts.ExplorerURL, o.TxID, string(c.opts.Network))
		}
	}
	if c.onramp != nil {
		o := *c.onramp
		v.Onramp = &o
	}
	if c.expiryTick != nil {
		tk := *c.expiryTick
		v.Expiry = &tk
	}
	if c.signReq != nil {
		r := *c.signReq
		v.PendingTransfer = &r
	}
	if c.payReq != nil {
		r := *c.payReq
		v.PendingPayment = &r
	}
	return v
}

// Quote returns the derived amounts for the current inputs and rate.
func (c *Controller) Quote() quote.Quote {
	return c.State().Quote
}

// validLiquidityLocked hides a result computed for another amount.
func (c *Controller) validLiquidityLocked() *models.LiquidityCheckResult {
	if c.liquidity == nil || c.liqGen != c.entryGen {
		return nil
	}
	r := *c.liquidity
	return &r
}

// ════════════════════════════════════════════════════════════════════
// Shared Actions
// ════════════════════════════════════════════════════════════════════

// Back moves to the predecessor of the current state.
func (c *Controller) Back() error {
	c.mu.Lock()
	from := c.state
	if from == models.StateSellAwaitingSignature {
		c.mu.Unlock()
		return &TransitionError{From: from, To: models.StateSellConfirm, Err: ErrSignaturePending}
	}
	to, ok := Predecessor(from)
	if !ok {
		c.mu.Unlock()
		return &TransitionError{From: from, To: from, Err: ErrNoBack}
	}
	switch from {
	case models.StateBuyPayment:
		c.dropPaymentLocked()
	case models.StateSellBankDetails:
		// Verification still in flight belongs to the step being left.
		if c.claim.Verifying {
			c.claimGen++
			c.claim.Verifying = false
		}
	}
	c.notice = ""
	c.submitGen++
	ev, err := c.transitionLocked(to, "back")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(ev)
	return nil
}

// Reset abandons the attempt and returns to entry with defaults. It is
// refused while a wallet prompt may be open.
func (c *Controller) Reset() error {
	c.mu.Lock()
	from := c.state
	if !CanReset(from) {
		c.mu.Unlock()
		return &TransitionError{From: from, To: models.StateEntry, Err: ErrSignaturePending}
	}

	c.stopExpiryLocked()
	prevAttempt := c.attempt
	c.state = models.StateEntry
	c.attempt = uuid.NewString()
	c.editor = quote.NewEditor(models.Sell, c.opts.DefaultAmount, c.opts.Precision)
	c.entryGen++
	c.liquidity = nil
	c.proceeding = false
	c.claim = models.BankAccountClaim{}
	c.claimGen++
	c.submitGen++
	c.submitting = false
	c.offramp = nil
	c.onramp = nil
	c.contact = models.Contact{}
	c.signReq = nil
	c.dropPaymentLocked()
	c.notice = ""
	c.walletErr = ""
	c.banksErr = ""

	c.journal.Log(JournalEntry{Attempt: prevAttempt, From: from, To: models.StateEntry, Reason: "reset"})
	c.metrics.Transition(string(from), string(models.StateEntry))
	ev := events.New(events.Transition, string(models.StateEntry), c.attempt, map[string]any{
		"from":   from,
		"to":     models.StateEntry,
		"reason": "reset",
	})
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"from": from, "attempt": prevAttempt}).Info("flow reset")
	c.publish(ev)
	return nil
}

// DismissNotice clears the dismissible notice.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	c.notice = ""
	c.mu.Unlock()
}

// ════════════════════════════════════════════════════════════════════
// Internal Helpers
// ════════════════════════════════════════════════════════════════════

// transitionLocked moves to `to` if the edge exists, journals it and
// returns the event to publish once the lock is released.
func (c *Controller) transitionLocked(to models.FlowState, reason string) (events.Event, error) {
	from := c.state
	if !CanTransition(from, to) {
		return events.Event{}, &TransitionError{From: from, To: to, Err: ErrWrongState}
	}
	c.state = to
	c.journal.Log(JournalEntry{Attempt: c.attempt, From: from, To: to, Reason: reason})
	c.metrics.Transition(string(from), string(to))
	c.logger.WithFields(logrus.Fields{
		"from":    from,
		"to":      to,
		"attempt": c.attempt,
		"reason":  reason,
	}).Info("flow transition")
	return events.New(events.Transition, string(to), c.attempt, map[string]any{
		"from":   from,
		"to":     to,
		"reason": reason,
	}), nil
}

func (c *Controller) eventLocked(t events.Type, data any) events.Event {
	return events.New(t, string(c.state), c.attempt, data)
}

func (c *Controller) publish(evs ...events.Event) {
	for _, e := range evs {
		if e.Type == "" {
			continue
		}
		if err := c.sink.Publish(c.baseCtx, e); err != nil {
			c.logger.WithField("event", e.Type).WithError(err).Warn("publish failed")
		}
	}
}

func (c *Controller) requireStateLocked(want ...models.FlowState) error {
	for _, s := range want {
		if c.state == s {
			return nil
		}
	}
	return &TransitionError{From: c.state, To: want[0], Err: ErrWrongState}
}

func (c *Controller) rate(asset models.Asset) *models.Rate {
	if c.rates == nil {
		return nil
	}
	r := c.rates.Current(asset)
	if r == nil || !r.Usable() {
		return nil
	}
	return r
}

func (c *Controller) onRate(asset models.Asset, snap models.RateSnapshot) {
	c.mu.Lock()
	if asset != c.asset {
		c.mu.Unlock()
		return
	}
	q := c.editor.Quote(snap.Rate)
	ev := c.eventLocked(events.RateUpdated, map[string]any{"rate": snap, "quote": q})
	c.mu.Unlock()
	c.publish(ev)
}

func (c *Controller) startExpiryLocked(deadline time.Time) {
	c.stopExpiryLocked()
	if deadline.IsZero() {
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.expiryStop = cancel
	tk := expiry.At(deadline, c.now())
	c.expiryTick = &tk

	timer := expiry.NewTimer(deadline)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		timer.Run(ctx, func(tk expiry.Tick) {
			c.mu.Lock()
			if ctx.Err() != nil {
				c.mu.Unlock()
				return
			}
			c.expiryTick = &tk
			ev := c.eventLocked(events.ExpiryTick, tk)
			c.mu.Unlock()
			c.publish(ev)
		})
	}()
}

func (c *Controller) stopExpiryLocked() {
	if c.expiryStop != nil {
		c.expiryStop()
		c.expiryStop = nil
	}
	c.expiryTick = nil
}

// orderMessage picks the notice for a failed initialize call: the backend's
// own words for a rejection, a generic retry hint otherwise.
func orderMessage(err error, rejected string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return rejected
	}
	return MsgServerError
}
