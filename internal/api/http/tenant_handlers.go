package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"teambilling/internal/domain"
)

type createTenantRequest struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	PushToken      string     `json:"push_token"`
	NotifyChannels []string   `json:"notify_channels"`
	CreatedAt      *time.Time `json:"created_at"`
}

type addMemberRequest struct {
	Name     string              `json:"name"`
	Phone    string              `json:"phone"`
	Status   domain.MemberStatus `json:"status"`
	JoinedAt *time.Time          `json:"joined_at"`
}

type subscriptionPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	PaidAt    *time.Time      `json:"paid_at"`
}

// CreateTenant handles POST /tenants
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !decode(w, r, &req) {
		return
	}
	tenant := &domain.Tenant{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		PushToken:      req.PushToken,
		NotifyChannels: req.NotifyChannels,
	}
	if req.CreatedAt != nil {
		tenant.CreatedAt = req.CreatedAt.UTC()
	}
	if err := h.svc.Admin.CreateTenant(r.Context(), tenant); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

// GetTenant handles GET /tenants/{tenantID}
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	tenant, err := h.svc.Admin.GetTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *Handlers) override(w http.ResponseWriter, r *http.Request, apply func(context.Context, int32) (*domain.Tenant, error)) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	tenant, err := apply(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

// ActivateTenant handles POST /tenants/{tenantID}/activate
func (h *Handlers) ActivateTenant(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.svc.Admin.Activate)
}

// PauseTenant handles POST /tenants/{tenantID}/pause
func (h *Handlers) PauseTenant(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.svc.Admin.Pause)
}

// BlockTenant handles POST /tenants/{tenantID}/block
func (h *Handlers) BlockTenant(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.svc.Admin.Block)
}

// DeleteTenant handles DELETE /tenants/{tenantID}
func (h *Handlers) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.svc.Admin.Delete)
}

// AddMember handles POST /tenants/{tenantID}/members
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var req addMemberRequest
	if !decode(w, r, &req) {
		return
	}
	member := &domain.Member{TenantID: tenantID, Name: req.Name, Phone: req.Phone, Status: req.Status}
	if req.JoinedAt != nil {
		member.JoinedAt = req.JoinedAt.UTC()
	}
	if err := h.svc.Admin.AddMember(r.Context(), member); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RecordSubscriptionPayment handles POST /tenants/{tenantID}/subscription-payments
func (h *Handlers) RecordSubscriptionPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var req subscriptionPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	payment := &domain.SubscriptionPayment{TenantID: tenantID, Amount: req.Amount, Reference: req.Reference}
	if req.PaidAt != nil {
		payment.PaidAt = req.PaidAt.UTC()
	}
	if err := h.svc.Admin.RecordSubscriptionPayment(r.Context(), payment); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// ListSubscriptionPayments handles GET /tenants/{tenantID}/subscription-payments
func (h *Handlers) ListSubscriptionPayments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	payments, err := h.svc.Admin.ListSubscriptionPayments(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}
