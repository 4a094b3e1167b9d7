package services

import (
	"context"
	"errors"
	"sync"

	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"
	"bridge/agent/internal/stores"
	"bridge/agent/internal/utils/address"
	"bridge/agent/internal/utils/eth"

	"go.uber.org/zap"
)

// Session hands out the connected provider. Components borrow the handle for
// one operation and never keep it.
type Session interface {
	Provider() (provider.Provider, error)
	State() models.ConnectionState
}

// ConnectionManager owns the wallet session: the provider subscription, the
// in-memory connection state and its persisted snapshot.
type ConnectionManager struct {
	p      provider.Provider
	store  stores.SnapshotStore
	logger *zap.SugaredLogger

	mu          sync.Mutex
	state       models.ConnectionState
	unsubscribe func()
}

var _ Session = (*ConnectionManager)(nil)

// NewConnectionManager accepts a nil provider; Connect then fails with
// ErrProviderUnavailable.
func NewConnectionManager(p provider.Provider, store stores.SnapshotStore, logger *zap.SugaredLogger) *ConnectionManager {
	return &ConnectionManager{p: p, store: store, logger: logger}
}

func (m *ConnectionManager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnectionManager) Provider() (provider.Provider, error) {
	if m.p == nil {
		return nil, newError(ErrProviderUnavailable, "No wallet is available.", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Connected {
		return nil, newError(ErrNotConnected, "Connect a wallet first.", nil)
	}
	return m.p, nil
}

// Connect asks the wallet for account access and reads the active chain.
func (m *ConnectionManager) Connect(ctx context.Context) (models.ConnectionState, error) {
	if m.p == nil {
		return m.State(), newError(ErrProviderUnavailable, "No wallet is available.", nil)
	}

	m.mu.Lock()
	m.state.Connecting = true
	m.state.Error = ""
	m.mu.Unlock()

	accounts, err := provider.Accounts(ctx, m.p, "eth_requestAccounts")
	if err != nil {
		if errors.Is(Classify(err), ErrCancelled) {
			return m.fail(newError(ErrConnectionRejected, "Wallet connection was rejected.", err))
		}
		return m.fail(Classify(err))
	}
	if len(accounts) == 0 {
		return m.fail(newError(ErrConnectionRejected, "The wallet returned no accounts.", nil))
	}
	addr, err := address.Checksummed(accounts[0])
	if err != nil {
		return m.fail(newError(ErrUnknownProvider, "The wallet returned an invalid account.", err))
	}

	chainID, err := provider.ChainID(ctx, m.p)
	if err != nil {
		return m.fail(Classify(err))
	}

	st := m.establish(addr, chainID)
	m.persist(ctx, st)
	m.logger.Infow("wallet connected", "address", st.Address, "chainId", st.ChainID)
	return st, nil
}

// Disconnect drops the session. Calling it while disconnected is a no-op.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	wasConnected := m.state.Connected
	m.unsubscribe = nil
	m.state = models.ConnectionState{}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if m.store != nil {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warnw("failed to clear session snapshot", "error", err)
		}
	}
	if wasConnected {
		m.logger.Infow("wallet disconnected")
	}
	return nil
}

// Restore reconnects silently from a persisted snapshot. A stale snapshot is
// cleared and reported as not restored.
func (m *ConnectionManager) Restore(ctx context.Context) (models.ConnectionState, bool) {
	if m.p == nil || m.store == nil {
		return m.State(), false
	}
	snap, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, stores.ErrSnapshotNotFound) {
			m.logger.Warnw("failed to read session snapshot", "error", err)
		}
		return m.State(), false
	}
	if !snap.Connected {
		m.discard(ctx, "snapshot not connected")
		return m.State(), false
	}

	accounts, err := provider.Accounts(ctx, m.p, "eth_accounts")
	if err != nil || len(accounts) == 0 {
		m.discard(ctx, "wallet no longer exposes accounts")
		return m.State(), false
	}
	addr, err := address.Checksummed(accounts[0])
	if err != nil {
		m.discard(ctx, "invalid account")
		return m.State(), false
	}
	chainID, err := provider.ChainID(ctx, m.p)
	if err != nil {
		m.discard(ctx, "chain id unavailable")
		return m.State(), false
	}

	st := m.establish(addr, chainID)
	m.persist(ctx, st)
	m.logger.Infow("wallet session restored", "address", st.Address, "chainId", st.ChainID)
	return st, true
}

func (m *ConnectionManager) establish(addr string, chainID int64) models.ConnectionState {
	m.mu.Lock()
	m.state = models.ConnectionState{Connected: true, Address: addr, ChainID: chainID}
	st := m.state
	subscribed := m.unsubscribe != nil
	m.mu.Unlock()

	if !subscribed {
		unsubscribe := m.p.Subscribe(m.handleEvent)
		m.mu.Lock()
		if m.unsubscribe == nil && m.state.Connected {
			m.unsubscribe = unsubscribe
			unsubscribe = nil
		}
		m.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	}
	return st
}

func (m *ConnectionManager) fail(err *BridgeError) (models.ConnectionState, error) {
	m.mu.Lock()
	m.state.Connecting = false
	m.state.Error = err.Message
	st := m.state
	m.mu.Unlock()
	m.logger.Warnw("wallet connection failed", "error", err.Message, "cause", err.Cause)
	return st, err
}

func (m *ConnectionManager) discard(ctx context.Context, reason string) {
	m.logger.Infow("discarding stale session snapshot", "reason", reason)
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warnw("failed to clear session snapshot", "error", err)
	}
}

func (m *ConnectionManager) persist(ctx context.Context, st models.ConnectionState) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, st.Snapshot()); err != nil {
		m.logger.Warnw("failed to persist session snapshot", "error", err)
	}
}

func (m *ConnectionManager) handleEvent(ev provider.Event) {
	ctx := context.Background()
	switch ev.Type {
	case provider.EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			m.logger.Infow("wallet exposed no accounts, disconnecting")
			_ = m.Disconnect(ctx)
			return
		}
		addr, err := address.Checksummed(ev.Accounts[0])
		if err != nil {
			m.logger.Warnw("ignoring invalid account from wallet", "account", ev.Accounts[0])
			return
		}
		m.mu.Lock()
		if !m.state.Connected {
			m.mu.Unlock()
			return
		}
		m.state.Address = addr
		st := m.state
		m.mu.Unlock()
		m.persist(ctx, st)
		m.logger.Infow("wallet account changed", "address", addr)

	case provider.EventChainChanged:
		id, err := eth.ParseChainID(ev.ChainID)
		if err != nil {
			m.logger.Warnw("ignoring malformed chain id from wallet", "chainId", ev.ChainID, "error", err)
			return
		}
		m.mu.Lock()
		if !m.state.Connected {
			m.mu.Unlock()
			return
		}
		m.state.ChainID = id
		st := m.state
		m.mu.Unlock()
		m.persist(ctx, st)
		m.logger.Infow("wallet chain changed", "chainId", id)
	}
}
