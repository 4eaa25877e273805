//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/adapter"
	"zapfollow-billing/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- In-memory SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription // by id

	CreateCalls int

	CreateFunc           func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
	AttachCheckoutFunc   func(ctx context.Context, tx repository.Tx, id, externalID, initPoint string) error
	UpdateStatusFunc     func(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, at time.Time) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

// Put seeds a row directly.
func (r *MockSubscriptionRepo) Put(s *model.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[s.ID] = &cp
}

// Get returns a copy of the stored row, or nil.
func (r *MockSubscriptionRepo) Get(id string) *model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *MockSubscriptionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.mu.Lock()
	r.CreateCalls++
	r.mu.Unlock()
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[s.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *s
	r.data[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if s := r.Get(id); s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.ExternalID != "" && s.ExternalID == externalID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if r.FindActiveByUserFunc != nil {
		return r.FindActiveByUserFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Subscription
	for _, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			if best == nil || s.UpdatedAt.After(best.UpdatedAt) {
				best = s
			}
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *MockSubscriptionRepo) AttachCheckout(ctx context.Context, tx repository.Tx, id, externalID, initPoint string) error {
	if r.AttachCheckoutFunc != nil {
		return r.AttachCheckoutFunc(ctx, tx, id, externalID, initPoint)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.ExternalID = externalID
	s.InitPoint = initPoint
	if s.ExternalRef == "" {
		s.ExternalRef = s.ID
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (r *MockSubscriptionRepo) AttachExternalID(ctx context.Context, tx repository.Tx, id, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok || s.ExternalID != "" {
		return domain.ErrNotFound
	}
	s.ExternalID = externalID
	s.UpdatedAt = time.Now()
	return nil
}

func (r *MockSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, at time.Time) error {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, tx, id, status, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = at
	return nil
}

func (r *MockSubscriptionRepo) ListStalePending(ctx context.Context, tx repository.Tx, createdAfter, createdBefore time.Time, limit int) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.Status == model.SubscriptionStatusPending && s.ExternalID != "" &&
			!s.CreatedAt.Before(createdAfter) && s.CreatedAt.Before(createdBefore) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range r.data {
		out[s.Status]++
	}
	return out, nil
}

// ---- In-memory ProfileRepository ----

type MockProfileRepo struct {
	mu    sync.Mutex
	plans map[string]model.PlanTier

	SetPlanCalls int
	SetPlanErr   error
}

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func NewMockProfileRepo() *MockProfileRepo {
	return &MockProfileRepo{plans: map[string]model.PlanTier{}}
}

func (r *MockProfileRepo) Seed(userID string, plan model.PlanTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[userID] = plan
}

func (r *MockProfileRepo) GetPlan(ctx context.Context, tx repository.Tx, userID string) (model.PlanTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (r *MockProfileRepo) SetPlan(ctx context.Context, tx repository.Tx, userID string, plan model.PlanTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SetPlanCalls++
	if r.SetPlanErr != nil {
		return r.SetPlanErr
	}
	if _, ok := r.plans[userID]; !ok {
		return domain.ErrNotFound
	}
	r.plans[userID] = plan
	return nil
}

// ---- MockTxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PreapprovalGateway ----

type MockGateway struct {
	mu    sync.Mutex
	seq   int
	items map[string]adapter.Preapproval

	CreateCalls int
	GetCalls    int
	LastRequest adapter.PreapprovalRequest

	CreateErr error
	GetErr    error
}

var _ adapter.PreapprovalGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{items: map[string]adapter.Preapproval{}}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) CreatePreapproval(ctx context.Context, req adapter.PreapprovalRequest) (*adapter.Preapproval, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreateCalls++
	g.LastRequest = req
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	id := fmt.Sprintf("pre_%d", g.seq)
	p := adapter.Preapproval{
		ID:                id,
		ExternalReference: req.ExternalReference,
		Status:            "pending",
		InitPoint:         "https://provider.test/checkout/" + id,
		PayerEmail:        req.PayerEmail,
	}
	g.items[id] = p
	return &p, nil
}

func (g *MockGateway) GetPreapproval(ctx context.Context, id string) (*adapter.Preapproval, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GetCalls++
	if g.GetErr != nil {
		return nil, g.GetErr
	}
	p, ok := g.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// Set stores or replaces a provider-side resource.
func (g *MockGateway) Set(p adapter.Preapproval) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items[p.ID] = p
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrCheckoutInProgress
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	Allowed bool
	Err     error
	Keys    []string
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.Keys = append(m.Keys, key)
	return m.Allowed, m.Err
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
