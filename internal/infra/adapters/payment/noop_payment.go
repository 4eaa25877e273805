package payment

import (
	"context"
	"fmt"
	"sync"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/ports/adapter"
)

var _ adapter.PreapprovalGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests.
// Created preapprovals start as "pending"; SetStatus simulates the payer's actions.
type NoopPaymentGateway struct {
	mu    sync.Mutex
	seq   int64
	items map[string]adapter.Preapproval
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		items: make(map[string]adapter.Preapproval),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) CreatePreapproval(ctx context.Context, req adapter.PreapprovalRequest) (*adapter.Preapproval, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	p := adapter.Preapproval{
		ID:                id,
		ExternalReference: req.ExternalReference,
		Status:            "pending",
		InitPoint:         "https://example.test/preapproval/" + id,
		PayerEmail:        req.PayerEmail,
	}
	g.items[id] = p
	return &p, nil
}

func (g *NoopPaymentGateway) GetPreapproval(ctx context.Context, id string) (*adapter.Preapproval, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// SetStatus changes the provider-side status of a known preapproval.
func (g *NoopPaymentGateway) SetStatus(id, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	g.items[id] = p
	return nil
}
