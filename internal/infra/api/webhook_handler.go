package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"zapfollow-billing/internal/infra/logging"
	"zapfollow-billing/internal/infra/metrics"
	"zapfollow-billing/internal/usecase"
)

// WebhookHandler receives provider notifications. Apart from a bad token it
// always answers 200 so the provider does not hammer us with retries.
type WebhookHandler struct {
	reconcile usecase.ReconcileUseCase
	token     []byte
	debug     bool
	flags     map[string]bool // which secrets are configured, reported on GET in debug mode
	log       *zerolog.Logger
}

func NewWebhookHandler(reconcile usecase.ReconcileUseCase, token string, debug bool, flags map[string]bool, logger *zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconcile: reconcile,
		token:     []byte(token),
		debug:     debug,
		flags:     flags,
		log:       logger,
	}
}

func (h *WebhookHandler) tokenOK(got string) bool {
	return len(h.token) > 0 && subtle.ConstantTimeCompare([]byte(got), h.token) == 1
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.tokenOK(r.URL.Query().Get("token")) {
		metrics.IncWebhook("forbidden")
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch r.Method {
	case http.MethodGet:
		body := map[string]any{"ok": true}
		if h.debug {
			for k, v := range h.flags {
				body[k] = v
			}
		}
		writeJSON(w, http.StatusOK, body)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	start := time.Now()
	defer func() { metrics.ObserveWebhookDuration(time.Since(start).Seconds()) }()
	ctx := r.Context()
	l := logging.With(ctx, h.log)

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		l.Warn().Err(err).Msg("webhook body unreadable")
	}
	id := resourceID(raw, r.URL.Query())
	l.Debug().Str("preapproval_id", id).Str("topic", r.URL.Query().Get("type")).Msg("webhook received")

	out, err := h.reconcile.Reconcile(ctx, id)
	switch {
	case err != nil:
		metrics.IncWebhook("error")
		l.Error().Err(err).Str("preapproval_id", id).Msg("webhook reconcile failed")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "error": err.Error()})
	case out.Note != "":
		metrics.IncWebhook("ignored")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "note": out.Note})
	default:
		metrics.IncWebhook("applied")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": string(out.Status)})
	}
}
