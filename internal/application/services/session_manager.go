package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

// SessionManager constructs a session on connect and tears it down on disconnect
type SessionManager struct {
	aggregator *BalanceAggregator
	allowances repositories.AllowanceSource
	approvals  repositories.AllowanceWriter
	engine     *IntentEngine
	spender    string
	initDelay  time.Duration
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	aggregator *BalanceAggregator,
	allowances repositories.AllowanceSource,
	approvals repositories.AllowanceWriter,
	engine *IntentEngine,
	spender string,
	initDelay time.Duration,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		aggregator: aggregator,
		allowances: allowances,
		approvals:  approvals,
		engine:     engine,
		spender:    spender,
		initDelay:  initDelay,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

// NormalizeIdentity validates an address and returns its lower-case form
func NormalizeIdentity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if !common.IsHexAddress(identity) {
		return "", nexuserr.New(nexuserr.KindValidation, "identity must be a hex address")
	}
	return strings.ToLower(common.HexToAddress(identity).Hex()), nil
}

// Connect returns the session for identity, creating and initialising it if
// needed. A failed initialisation keeps the session with its error state so
// the caller can retry the refresh.
func (m *SessionManager) Connect(ctx context.Context, identity string) (*Session, error) {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[identity]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	session := NewSession(
		identity,
		m.aggregator,
		NewAllowanceRegistry(identity, m.spender, m.allowances, m.approvals, m.logger),
		m.engine,
		m.logger,
	)
	m.sessions[identity] = session
	m.mu.Unlock()

	activeSessions.Inc()
	m.logger.Info("Identity connected", zap.String("identity", identity))

	if err := session.Init(ctx, m.initDelay); err != nil {
		return session, err
	}
	return session, nil
}

// Disconnect tears down the session for identity. In-flight work that lands
// afterwards is discarded.
func (m *SessionManager) Disconnect(ctx context.Context, identity string) error {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return err
	}

	m.mu.Lock()
	session, ok := m.sessions[identity]
	if ok {
		delete(m.sessions, identity)
	}
	m.mu.Unlock()

	if !ok {
		return nexuserr.ErrNotConnected
	}

	session.Close()
	m.aggregator.Invalidate(ctx, identity)
	activeSessions.Dec()
	m.logger.Info("Identity disconnected", zap.String("identity", identity))
	return nil
}

// Get returns the session for a connected identity
func (m *SessionManager) Get(identity string) (*Session, error) {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[identity]
	if !ok {
		return nil, nexuserr.ErrNotConnected
	}
	return session, nil
}

// Sessions returns all connected sessions ordered by identity
func (m *SessionManager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].identity < out[j].identity })
	return out
}

// Count returns the number of connected identities
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll disconnects every identity
func (m *SessionManager) CloseAll(ctx context.Context) {
	for _, s := range m.Sessions() {
		if err := m.Disconnect(ctx, s.identity); err != nil {
			m.logger.Warn("Failed to disconnect session", zap.String("identity", s.identity), zap.Error(err))
		}
	}
}
