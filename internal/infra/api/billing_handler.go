package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/ports/adapter"
	"zapfollow-billing/internal/infra/logging"
	"zapfollow-billing/internal/usecase"
)

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,eq=pro"`
}

type checkoutResponse struct {
	InitPoint     string `json:"init_point,omitempty"`
	AlreadyActive bool   `json:"alreadyActive,omitempty"`
	Redirect      string `json:"redirect,omitempty"`
}

// BillingHandler serves the browser-facing billing endpoints.
type BillingHandler struct {
	checkout usecase.CheckoutUseCase
	plans    usecase.EntitlementUseCase
	identity adapter.IdentityVerifier
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewBillingHandler(checkout usecase.CheckoutUseCase, plans usecase.EntitlementUseCase, identity adapter.IdentityVerifier, logger *zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		checkout: checkout,
		plans:    plans,
		identity: identity,
		validate: validator.New(),
		log:      logger,
	}
}

// Checkout handles POST /api/v1/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	// an unreadable body is just an invalid plan
	_ = json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan")
		return
	}

	who, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ctx = logging.WithUserID(ctx, who.UserID)

	res, err := h.checkout.Initiate(ctx, *who, req.Plan)
	if err != nil {
		status, msg := checkoutErrorStatus(err)
		if status >= http.StatusInternalServerError {
			l := logging.With(ctx, h.log)
			l.Error().Err(err).Msg("checkout failed")
		}
		writeError(w, status, msg)
		return
	}
	if res.AlreadyActive {
		writeJSON(w, http.StatusOK, checkoutResponse{AlreadyActive: true, Redirect: res.Redirect})
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{InitPoint: res.InitPoint})
}

// Plan handles GET /api/v1/billing/plan.
func (h *BillingHandler) Plan(w http.ResponseWriter, r *http.Request) {
	who, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	plan, err := h.plans.CurrentPlan(r.Context(), who.UserID)
	if err != nil {
		l := logging.With(logging.WithUserID(r.Context(), who.UserID), h.log)
		l.Error().Err(err).Msg("plan lookup failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plan": string(plan)})
}

func (h *BillingHandler) authenticate(w http.ResponseWriter, r *http.Request) (*adapter.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing Authorization Bearer token")
		return nil, false
	}
	who, err := h.identity.Verify(r.Context(), token)
	if err != nil || who == nil || who.UserID == "" {
		l := logging.With(r.Context(), h.log)
		l.Debug().Err(err).Msg("identity verification failed")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return who, true
}

func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidPlan):
		return http.StatusBadRequest, "Invalid plan"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many checkout attempts"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict, "Checkout already in progress"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
