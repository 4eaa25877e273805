// File: internal/infra/adapters/payment/mercadopago_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/ports/adapter"
	"zapfollow-billing/internal/infra/metrics"
)

var _ adapter.PreapprovalGateway = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway implements adapter.PreapprovalGateway on the preapproval REST API.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

func NewMercadoPagoGateway(accessToken, baseURL string) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, errors.New("mercadopago access token empty")
	}
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

type autoRecurring struct {
	Frequency         int     `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
}

type preapprovalBody struct {
	PayerEmail        string        `json:"payer_email"`
	BackURL           string        `json:"back_url"`
	Reason            string        `json:"reason"`
	ExternalReference string        `json:"external_reference"`
	NotificationURL   string        `json:"notification_url,omitempty"`
	AutoRecurring     autoRecurring `json:"auto_recurring"`
}

type preapprovalResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	PayerEmail        string `json:"payer_email"`
	Message           string `json:"message"`
}

// CreatePreapproval calls POST /preapproval and returns the id and checkout URL.
func (g *MercadoPagoGateway) CreatePreapproval(ctx context.Context, in adapter.PreapprovalRequest) (*adapter.Preapproval, error) {
	freq, freqType := in.Frequency, in.FrequencyType
	if freq <= 0 {
		freq = 1
	}
	if freqType == "" {
		freqType = "months"
	}
	body := preapprovalBody{
		PayerEmail:        in.PayerEmail,
		BackURL:           in.BackURL,
		Reason:            in.Reason,
		ExternalReference: in.ExternalReference,
		NotificationURL:   in.NotificationURL,
		AutoRecurring: autoRecurring{
			Frequency:         freq,
			FrequencyType:     freqType,
			TransactionAmount: float64(in.Amount) / 100,
			CurrencyID:        strings.ToUpper(in.Currency),
		},
	}

	start := time.Now()
	status, out, err := g.do(ctx, http.MethodPost, "/preapproval", body)
	ok := err == nil && status >= 200 && status < 300 && out.ID != ""
	metrics.ObserveProviderCall("create_preapproval", time.Since(start).Seconds(), ok)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, providerError(status, out.Message)
	}

	initPoint := out.InitPoint
	if initPoint == "" {
		initPoint = out.SandboxInitPoint
	}
	if out.ID == "" || initPoint == "" {
		return nil, fmt.Errorf("%w: response without id or init_point", domain.ErrPaymentProvider)
	}
	return &adapter.Preapproval{
		ID:                out.ID,
		ExternalReference: out.ExternalReference,
		Status:            out.Status,
		InitPoint:         initPoint,
		PayerEmail:        out.PayerEmail,
	}, nil
}

// GetPreapproval calls GET /preapproval/{id}. A 404 maps to domain.ErrNotFound.
func (g *MercadoPagoGateway) GetPreapproval(ctx context.Context, id string) (*adapter.Preapproval, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	start := time.Now()
	status, out, err := g.do(ctx, http.MethodGet, "/preapproval/"+url.PathEscape(id), nil)
	metrics.ObserveProviderCall("get_preapproval", time.Since(start).Seconds(), err == nil && status >= 200 && status < 300)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case status < 200 || status >= 300:
		return nil, providerError(status, out.Message)
	}
	initPoint := out.InitPoint
	if initPoint == "" {
		initPoint = out.SandboxInitPoint
	}
	return &adapter.Preapproval{
		ID:                out.ID,
		ExternalReference: out.ExternalReference,
		Status:            out.Status,
		InitPoint:         initPoint,
		PayerEmail:        out.PayerEmail,
	}, nil
}

func (g *MercadoPagoGateway) do(ctx context.Context, method, path string, payload any) (int, preapprovalResponse, error) {
	var out preapprovalResponse
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, out, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return 0, out, err
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, out, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, out, fmt.Errorf("%w: read body: %v", domain.ErrPaymentProvider, err)
	}
	if len(raw) > 0 {
		// error bodies are not always JSON; the status code still decides
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out, nil
}

func providerError(status int, msg string) error {
	if msg == "" {
		msg = fmt.Sprintf("http %d", status)
	}
	return fmt.Errorf("%w: %s", domain.ErrPaymentProvider, msg)
}
