package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

// SessionStatus is the observable lifecycle state of a session
type SessionStatus struct {
	Identity          string
	Initialized       bool
	Initializing      bool
	LoadingBalances   bool
	LoadingAllowances bool
	Closed            bool
	Error             error
}

// Session is the orchestrator state for one connected identity. It owns the
// balance snapshot, allowance registry and intent book; collaborators borrow
// them for the duration of a call.
type Session struct {
	identity   string
	aggregator *BalanceAggregator
	registry   *AllowanceRegistry
	book       *IntentBook
	engine     *IntentEngine
	subs       *subscribers
	refreshes  singleflight.Group
	logger     *zap.Logger

	mu                sync.RWMutex
	snapshot          *entities.BalanceSnapshot
	lastErr           error
	initialized       bool
	initializing      bool
	loadingBalances   bool
	allowanceInFlight int
	closed            bool
}

// NewSession creates a session for identity
func NewSession(
	identity string,
	aggregator *BalanceAggregator,
	registry *AllowanceRegistry,
	engine *IntentEngine,
	logger *zap.Logger,
) *Session {
	return &Session{
		identity:   identity,
		aggregator: aggregator,
		registry:   registry,
		book:       NewIntentBook(),
		engine:     engine,
		subs:       newSubscribers(),
		logger:     logger.With(zap.String("identity", identity)),
	}
}

// Identity returns the connected identity
func (s *Session) Identity() string {
	return s.identity
}

// Init performs the first refresh after the handshake delay
func (s *Session) Init(ctx context.Context, delay time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nexuserr.ErrSessionClosed
	}
	s.initializing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.mu.Unlock()
	}()

	if err := sleepCtx(ctx, delay); err != nil {
		return err
	}
	if _, err := s.Refresh(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = !s.closed
	s.mu.Unlock()
	s.logger.Info("Session initialized")
	return nil
}

// Refresh rebuilds the balance snapshot. Concurrent callers share one
// in-flight refresh; the snapshot is replaced wholesale on success. The
// shared refresh is not bound to any single caller's ctx.
func (s *Session) Refresh(ctx context.Context) (*entities.BalanceSnapshot, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := s.refreshes.Do("refresh", func() (interface{}, error) {
		s.setLoadingBalances(true)
		defer s.setLoadingBalances(false)

		snapshot, err := s.aggregator.Refresh(shared, s.identity)
		if err != nil {
			s.setError(err)
			return nil, err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, nexuserr.ErrSessionClosed
		}
		s.snapshot = snapshot
		s.lastErr = nil
		s.mu.Unlock()

		s.Publish(entities.NewEvent(entities.EventBalancesUpdated, map[string]any{
			"tokens": len(snapshot.Unified),
		}))
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.BalanceSnapshot), nil
}

// Balances returns the last snapshot, or nil before the first refresh
func (s *Session) Balances() *entities.BalanceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) unified() entities.UnifiedBalances {
	if snap := s.Balances(); snap != nil {
		return snap.Unified
	}
	return entities.UnifiedBalances{}
}

// GetAllowances fetches and caches allowances for tokens on chainID
func (s *Session) GetAllowances(ctx context.Context, chainID int64, tokens []string) ([]entities.Allowance, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.beginAllowance()
	defer s.endAllowance()

	allowances, err := s.registry.Get(ctx, chainID, tokens)
	if err != nil {
		s.setError(err)
		return nil, err
	}
	return allowances, nil
}

// SetAllowance approves value (base units or "max") for token on chainID
func (s *Session) SetAllowance(ctx context.Context, chainID int64, token, value string) (entities.Allowance, error) {
	if err := s.checkOpen(); err != nil {
		return entities.Allowance{}, err
	}
	s.beginAllowance()
	defer s.endAllowance()

	allowance, err := s.registry.Set(ctx, chainID, token, value)
	if err != nil {
		return entities.Allowance{}, err
	}
	s.publishAllowance(chainID, allowance)
	return allowance, nil
}

// RevokeAllowance resets the allowance for token on chainID to zero
func (s *Session) RevokeAllowance(ctx context.Context, chainID int64, token string) (entities.Allowance, error) {
	if err := s.checkOpen(); err != nil {
		return entities.Allowance{}, err
	}
	s.beginAllowance()
	defer s.endAllowance()

	allowance, err := s.registry.Revoke(ctx, chainID, token)
	if err != nil {
		return entities.Allowance{}, err
	}
	s.publishAllowance(chainID, allowance)
	return allowance, nil
}

// Allowances returns the cached registry entries
func (s *Session) Allowances() map[int64][]entities.Allowance {
	return s.registry.Entries()
}

// CreateIntent builds a pending intent against the current snapshot
func (s *Session) CreateIntent(ctx context.Context, req CreateIntentRequest) (*entities.Intent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	intent, err := s.engine.Create(ctx, s.book, s.unified(), s.identity, req)
	if err != nil {
		return nil, err
	}
	s.publishIntent(intent)
	return intent, nil
}

// ApproveIntent drives the named pending intent to a terminal state
func (s *Session) ApproveIntent(ctx context.Context, id string) (*entities.Intent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.engine.Approve(ctx, s.book, id, s.publishIntent)
}

// DenyIntent fails the named pending intent
func (s *Session) DenyIntent(ctx context.Context, id string) (*entities.Intent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	intent, err := s.engine.Deny(ctx, s.book, id)
	if err != nil {
		return nil, err
	}
	s.publishIntent(intent)
	return intent, nil
}

// CurrentIntent returns the active intent, or nil
func (s *Session) CurrentIntent() *entities.Intent {
	return s.book.Current()
}

// IntentHistory returns terminal intents, most recent first
func (s *Session) IntentHistory() []*entities.Intent {
	return s.book.History()
}

// Subscribe returns a stream of session events and a cancel func
func (s *Session) Subscribe(buffer int) (<-chan entities.NexusEvent, func()) {
	return s.subs.add(buffer)
}

// Publish sends event to every subscriber without blocking
func (s *Session) Publish(event entities.NexusEvent) {
	s.subs.publish(event)
}

// Status reports the session flags and last error
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionStatus{
		Identity:          s.identity,
		Initialized:       s.initialized,
		Initializing:      s.initializing,
		LoadingBalances:   s.loadingBalances,
		LoadingAllowances: s.allowanceInFlight > 0,
		Closed:            s.closed,
		Error:             s.lastErr,
	}
}

// Close tears the session down. Results that land afterwards are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.initialized = false
	s.mu.Unlock()

	s.book.Close()
	s.registry.Close()
	s.subs.close()
	s.logger.Info("Session closed")
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nexuserr.ErrSessionClosed
	}
	return nil
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	if !s.closed {
		s.lastErr = err
	}
	s.mu.Unlock()
	s.logger.Warn("Session error", zap.Error(err))
}

func (s *Session) setLoadingBalances(loading bool) {
	s.mu.Lock()
	s.loadingBalances = loading
	s.mu.Unlock()
}

func (s *Session) beginAllowance() {
	s.mu.Lock()
	s.allowanceInFlight++
	s.mu.Unlock()
}

func (s *Session) endAllowance() {
	s.mu.Lock()
	s.allowanceInFlight--
	s.mu.Unlock()
}

func (s *Session) publishIntent(intent *entities.Intent) {
	s.Publish(entities.NewEvent(entities.EventIntentStatus, map[string]any{
		"intentId": intent.ID,
		"status":   string(intent.Status),
	}))
}

func (s *Session) publishAllowance(chainID int64, allowance entities.Allowance) {
	s.Publish(entities.NewEvent(entities.EventAllowanceUpdated, map[string]any{
		"chainId":     chainID,
		"token":       allowance.Token,
		"allowance":   allowance.Amount.String(),
		"isUnlimited": allowance.IsUnlimited,
	}))
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
