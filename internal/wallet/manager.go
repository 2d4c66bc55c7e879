package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/pkg/models"
)

// Manager owns the single wallet session of a controller.
type Manager struct {
	provider Provider
	detector Detector
	store    Store
	logger   *logrus.Logger

	mu      sync.RWMutex
	session models.Session
}

// NewManager creates a session manager. A nil store disables persistence.
func NewManager(provider Provider, detector Detector, store Store, logger *logrus.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Manager{provider: provider, detector: detector, store: store, logger: logger}
}

// Session returns a copy of the current session.
func (m *Manager) Session() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Connected reports whether a session with an address is held.
func (m *Manager) Connected() bool {
	s := m.Session()
	return s.Connected && s.Address != ""
}

// Provider returns the underlying signing capability.
func (m *Manager) Provider() Provider { return m.provider }

// Connect asks the provider for a session and adopts its first asset-chain
// address. An existing session is returned unchanged.
func (m *Manager) Connect(ctx context.Context) (models.Session, error) {
	if s := m.Session(); s.Connected {
		return s, nil
	}

	if err := m.provider.Connect(ctx); err != nil {
		m.logger.WithError(err).Info("wallet connect failed")
		return models.Session{}, fmt.Errorf("connect wallet: %w", err)
	}

	addrs, err := m.provider.StoredAddresses(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("read wallet addresses: %w", err)
	}
	addr := addrs.Primary()
	if addr == "" {
		return models.Session{}, ErrNoAddress
	}

	s := m.adopt(addr)
	if err := m.store.Save(ctx, Record{Address: s.Address, Provider: s.Provider, ConnectedAt: time.Now()}); err != nil {
		m.logger.WithError(err).Warn("persist wallet session failed")
	}
	m.logger.WithFields(logrus.Fields{"provider": s.Provider, "address": s.Address}).Info("wallet connected")
	return s, nil
}

// Disconnect clears the local session and asks the provider to drop its
// own without waiting for it.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	m.session = models.Session{}
	m.mu.Unlock()

	go m.provider.Disconnect()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.WithError(err).Warn("clear wallet session failed")
	}
	m.logger.Info("wallet disconnected")
}

// Restore tries to recover a session without prompting: first from the
// provider's own storage, then from the session store. Failure leaves the
// session disconnected.
func (m *Manager) Restore(ctx context.Context) models.Session {
	if m.provider.IsConnected(ctx) {
		addrs, err := m.provider.StoredAddresses(ctx)
		if err == nil && addrs.Primary() != "" {
			s := m.adopt(addrs.Primary())
			m.logger.WithField("address", s.Address).Info("wallet session restored from provider")
			return s
		}
		if err != nil {
			m.logger.WithError(err).Debug("provider storage unreadable")
		}
	}

	rec, err := m.store.Load(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("wallet session restore failed")
		return models.Session{}
	}
	if rec == nil || rec.Address == "" {
		return models.Session{}
	}

	m.mu.Lock()
	m.session = models.Session{Connected: true, Address: rec.Address, Provider: rec.Provider}
	s := m.session
	m.mu.Unlock()
	m.logger.WithField("address", s.Address).Info("wallet session restored from store")
	return s
}

func (m *Manager) adopt(addr string) models.Session {
	label := safeLabel(m.detector)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = models.Session{Connected: true, Address: addr, Provider: label}
	return m.session
}
