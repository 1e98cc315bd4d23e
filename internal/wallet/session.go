package wallet

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"go.uber.org/zap"
)

type Session struct {
	Address    string `json:"address,omitempty"` // lowercase, empty when disconnected
	Connecting bool   `json:"connecting"`
}

func (s Session) Connected() bool { return s.Address != "" }

// Alerter shows a blocking, user-visible message.
type Alerter interface {
	Alert(msg string)
}

type AlertFunc func(msg string)

func (f AlertFunc) Alert(msg string) { f(msg) }

type Options struct {
	// Providers in connection priority order: embedded first, then injected.
	Providers []Provider
	Store     Store
	Alerter   Alerter
	// Reload is called when a provider reports a chain change.
	Reload  func(ctx context.Context)
	ChainID *big.Int
}

// Manager owns the single wallet session and broadcasts every change to
// its subscribers. It is the only writer of the session.
type Manager struct {
	providers []Provider
	store     Store
	alerter   Alerter
	reload    func(ctx context.Context)
	chainID   *big.Int
	log       *zap.Logger

	mu      sync.RWMutex
	session Session
	active  Provider

	subMu   sync.Mutex
	subs    map[int]func(Session)
	nextSub int
}

func NewManager(opts Options, log *zap.Logger) *Manager {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Alerter == nil {
		opts.Alerter = AlertFunc(func(string) {})
	}
	return &Manager{
		providers: Available(opts.Providers...),
		store:     opts.Store,
		alerter:   opts.Alerter,
		reload:    opts.Reload,
		chainID:   opts.ChainID,
		log:       log,
		subs:      make(map[int]func(Session)),
	}
}

func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Address returns the session address or ErrNotConnected.
func (m *Manager) Address() (string, error) {
	s := m.Session()
	if !s.Connected() {
		return "", ErrNotConnected
	}
	return s.Address, nil
}

// Subscribe registers fn for session changes and returns its removal func.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(s Session) {
	m.subMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Init restores a persisted address without touching any provider. If none
// is stored it silently asks providers for already-authorized accounts.
// Provider notifications are watched until ctx is done.
func (m *Manager) Init(ctx context.Context) error {
	defer m.watch(ctx)

	saved, ok, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warn("failed to read persisted wallet address", zap.Error(err))
	}
	if ok {
		addr, err := NormalizeAddress(saved)
		if err == nil {
			m.set(Session{Address: addr}, nil)
			m.log.Info("restored wallet address from storage", zap.String("address", addr))
			return nil
		}
		m.log.Warn("discarding malformed persisted address", zap.String("address", saved))
		_ = m.store.Clear(ctx)
	}

	for _, p := range m.providers {
		accounts, err := requestAccounts(ctx, p, MethodAccounts)
		if err != nil {
			m.log.Debug("wallet account lookup failed", zap.String("provider", string(p.Kind())), zap.Error(err))
			continue
		}
		if len(accounts) == 0 {
			continue
		}
		if err := m.update(ctx, accounts[0], p); err != nil {
			m.log.Warn("provider returned malformed account", zap.String("provider", string(p.Kind())), zap.Error(err))
			continue
		}
		m.log.Info("connected via authorized wallet", zap.String("provider", string(p.Kind())), zap.String("address", m.Session().Address))
		return nil
	}
	return nil
}

// Connect prompts providers in order; the first non-empty account list wins.
// A user rejection is a silent no-op. Other failures are alerted.
func (m *Manager) Connect(ctx context.Context) error {
	m.setConnecting(true)
	defer m.setConnecting(false)

	m.log.Info("starting wallet connection")

	var lastErr error
	for _, p := range m.providers {
		accounts, err := requestAccounts(ctx, p, MethodRequestAccounts)
		if err != nil {
			if IsUserRejection(err) {
				m.log.Info("user rejected connection", zap.String("provider", string(p.Kind())))
				return nil
			}
			m.log.Warn("wallet connection attempt failed", zap.String("provider", string(p.Kind())), zap.Error(err))
			lastErr = err
			continue
		}
		if len(accounts) == 0 {
			continue
		}
		if err := m.update(ctx, accounts[0], p); err != nil {
			lastErr = err
			continue
		}
		m.log.Info("wallet connection successful", zap.String("provider", string(p.Kind())), zap.String("address", m.Session().Address))
		return nil
	}

	if lastErr != nil {
		m.alerter.Alert("Wallet connection error: " + lastErr.Error())
		return fmt.Errorf("connect wallet: %w", lastErr)
	}
	m.alerter.Alert("No wallet found! Configure an embedded key or an injected wallet endpoint.")
	return ErrNoProvider
}

// Disconnect clears memory and persisted state regardless of prior state.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.set(Session{}, nil)
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted wallet address: %w", err)
	}
	m.log.Info("wallet disconnected")
	return nil
}

// TransactOpts returns signing options for the session account. A session
// restored from storage is matched to the provider that still holds it.
func (m *Manager) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	m.mu.RLock()
	addr, active := m.session.Address, m.active
	m.mu.RUnlock()

	if addr == "" {
		return nil, ErrNotConnected
	}
	if active == nil {
		for _, p := range m.providers {
			accounts, err := requestAccounts(ctx, p, MethodAccounts)
			if err != nil {
				continue
			}
			if containsFold(accounts, addr) {
				active = p
				break
			}
		}
		if active == nil {
			return nil, fmt.Errorf("%w: no provider holds %s", ErrNotConnected, addr)
		}
		m.mu.Lock()
		m.active = active
		m.mu.Unlock()
	}
	return active.TransactOpts(ctx, addr, m.chainID)
}

func (m *Manager) watch(ctx context.Context) {
	for _, p := range m.providers {
		ch := p.Events()
		if ch == nil {
			continue
		}
		go func(p Provider, ch <-chan ProviderEvent) {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					m.handleEvent(ctx, p, ev)
				}
			}
		}(p, ch)
	}
}

func (m *Manager) handleEvent(ctx context.Context, p Provider, ev ProviderEvent) {
	switch ev.Name {
	case EventAccountsChanged:
		m.log.Info("accounts changed", zap.String("provider", string(p.Kind())), zap.Strings("accounts", ev.Accounts))
		if len(ev.Accounts) == 0 {
			m.set(Session{}, nil)
			if err := m.store.Clear(ctx); err != nil {
				m.log.Warn("failed to clear persisted wallet address", zap.Error(err))
			}
			return
		}
		if err := m.update(ctx, ev.Accounts[0], p); err != nil {
			m.log.Warn("ignoring malformed account change", zap.Error(err))
		}
	case EventChainChanged:
		m.log.Info("chain changed, reloading", zap.String("provider", string(p.Kind())))
		if m.reload != nil {
			m.reload(ctx)
		}
	}
}

func (m *Manager) update(ctx context.Context, raw string, p Provider) error {
	addr, err := NormalizeAddress(raw)
	if err != nil {
		return err
	}
	m.set(Session{Address: addr}, p)
	if err := m.store.Set(ctx, addr); err != nil {
		m.log.Warn("failed to persist wallet address", zap.Error(err))
	}
	return nil
}

func (m *Manager) set(s Session, p Provider) {
	m.mu.Lock()
	s.Connecting = m.session.Connecting
	m.session = s
	m.active = p
	m.mu.Unlock()
	m.notify(s)
}

func (m *Manager) setConnecting(v bool) {
	m.mu.Lock()
	m.session.Connecting = v
	s := m.session
	m.mu.Unlock()
	m.notify(s)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if n, err := NormalizeAddress(s); err == nil && n == v {
			return true
		}
	}
	return false
}
