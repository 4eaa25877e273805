package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"zapfollow-billing/internal/infra/metrics"
)

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps collects what the HTTP surface needs.
type RouterDeps struct {
	Billing        *BillingHandler
	Webhook        *WebhookHandler
	Gate           *OriginGate
	DB             Pinger // optional
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

// NewRouter builds the chi router with the middleware chain applied.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Handle("/checkout", d.Gate.Only(http.MethodPost, http.HandlerFunc(d.Billing.Checkout)))
		r.Handle("/plan", d.Gate.Only(http.MethodGet, http.HandlerFunc(d.Billing.Plan)))
		r.Handle("/webhook", d.Webhook)
	})

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return Chain(r,
		TraceID(),
		RequestLog(d.Logger),
		Recover(d.Logger),
		Timeout(timeout),
	)
}
