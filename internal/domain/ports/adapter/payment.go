package adapter

import "context"

// PreapprovalRequest describes a monthly recurring-payment authorization.
type PreapprovalRequest struct {
	PayerEmail        string
	BackURL           string
	Reason            string
	ExternalReference string
	NotificationURL   string
	Amount            int64 // minor units
	Currency          string
	Frequency         int
	FrequencyType     string // "months"
}

// Preapproval is the provider's view of a recurring subscription.
type Preapproval struct {
	ID                string
	ExternalReference string
	Status            string // raw provider status: pending | authorized | paused | cancelled
	InitPoint         string
	PayerEmail        string
}

// PreapprovalGateway is the hex port for the recurring-payment provider.
type PreapprovalGateway interface {
	Name() string

	// CreatePreapproval creates the provider resource and returns its id and checkout URL.
	CreatePreapproval(ctx context.Context, req PreapprovalRequest) (*Preapproval, error)
	// GetPreapproval fetches the authoritative state of a resource by provider id.
	GetPreapproval(ctx context.Context, id string) (*Preapproval, error)
}
