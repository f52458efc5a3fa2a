package connection

import (
	"context"
	"errors"
	"sync"

	"drone-facade/internal/link"
	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

// Diagnostics receives entries for the diagnostic log.
type Diagnostics interface {
	Log(messages ...string)
}

// Manager owns the vehicle link. At most one live link exists at a time.
type Manager struct {
	dial   link.Dialer
	diag   Diagnostics
	logger *logger.Logger

	// dialMu serializes Connect and Close. mu only guards link and is never
	// held while dialing.
	dialMu sync.Mutex
	mu     sync.RWMutex
	link   link.Link

	// OnStateChange, when set, is called after every connect or drop.
	OnStateChange func(types.ConnectionState)

	disconnectedMsg []string
}

func NewManager(dial link.Dialer, diag Diagnostics, l *logger.Logger, disconnectedMsg []string) *Manager {
	return &Manager{
		dial:            dial,
		diag:            diag,
		logger:          l.WithTag("connection"),
		disconnectedMsg: disconnectedMsg,
	}
}

// Connect dials the vehicle unless a link is already held. A failed dial
// leaves the manager disconnected; retrying is up to the caller.
func (m *Manager) Connect(ctx context.Context) types.ConnectionState {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	if m.Link() != nil {
		m.logger.Debugf("Connect called while connected")
		return types.StateConnected
	}

	m.logger.Infof("Connecting to vehicle")
	l, err := m.dial(ctx)
	if err != nil || l == nil {
		m.logger.Warnf("Vehicle connection failed: %v", err)
		m.diag.Log(m.disconnectedMsg...)
		m.notify(types.StateDisconnected)
		return types.StateDisconnected
	}

	m.mu.Lock()
	m.link = l
	m.mu.Unlock()

	m.logger.Infof("Vehicle connected")
	m.notify(types.StateConnected)
	return types.StateConnected
}

func (m *Manager) State() types.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.link == nil {
		return types.StateDisconnected
	}
	return types.StateConnected
}

// Link returns the current link, or nil when disconnected.
func (m *Manager) Link() link.Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.link
}

// Do runs fn against the live link. It returns types.ErrNotConnected
// without calling fn when no link is held. A link-lost error from fn
// drops the link.
func (m *Manager) Do(fn func(link.Link) error) error {
	l := m.Link()
	if l == nil {
		return types.ErrNotConnected
	}

	err := fn(l)
	if errors.Is(err, types.ErrLinkLost) {
		m.drop(l)
	}
	return err
}

// drop releases l if it is still the current link.
func (m *Manager) drop(l link.Link) {
	m.mu.Lock()
	if m.link != l {
		m.mu.Unlock()
		return
	}
	m.link = nil
	m.mu.Unlock()

	m.logger.Warnf("Vehicle link lost")
	if err := l.Close(); err != nil {
		m.logger.Debugf("Closing lost link: %v", err)
	}
	m.diag.Log(m.disconnectedMsg...)
	m.notify(types.StateDisconnected)
}

// Close releases the link, if any. It waits for a dial in progress.
func (m *Manager) Close() error {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	l := m.link
	m.link = nil
	m.mu.Unlock()

	if l == nil {
		return nil
	}
	m.notify(types.StateDisconnected)
	return l.Close()
}

func (m *Manager) notify(state types.ConnectionState) {
	if m.OnStateChange != nil {
		m.OnStateChange(state)
	}
}
