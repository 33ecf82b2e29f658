package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"teambilling/internal/domain"
)

type feeConfigRequest struct {
	Amount decimal.Decimal `json:"amount"`
	DueDay int             `json:"due_day"`
}

type feeExceptionRequest struct {
	IsExempt bool             `json:"is_exempt"`
	Amount   *decimal.Decimal `json:"amount"`
}

type generateInvoicesRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type generateInvoicesResponse struct {
	Created      int     `json:"created"`
	Unconfigured []int32 `json:"unconfigured_member_ids,omitempty"`
}

type payInvoiceRequest struct {
	PaidAt *time.Time `json:"paid_at"`
}

type debtRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	Description string          `json:"description"`
}

// RunBilling handles POST /billing/run?as_of=YYYY-MM-DD
func (h *Handlers) RunBilling(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Batch.RunDailyEvaluation(r.Context(), asOf)
	if err != nil && report == nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// LatestReport handles GET /billing/reports/latest
func (h *Handlers) LatestReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Batch.LastReport(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// MarkLate handles POST /invoices/mark-late?as_of=YYYY-MM-DD
func (h *Handlers) MarkLate(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Batch.MarkLateInvoices(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked_late": n})
}

// GetFeeConfig handles GET /tenants/{tenantID}/fee-config
func (h *Handlers) GetFeeConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	cfg, err := h.svc.Fees.GetFeeConfig(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SetFeeConfig handles PUT /tenants/{tenantID}/fee-config
func (h *Handlers) SetFeeConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var req feeConfigRequest
	if !decode(w, r, &req) {
		return
	}
	cfg := &domain.FeeConfig{TenantID: tenantID, Amount: req.Amount, DueDay: req.DueDay}
	if err := h.svc.Fees.SetFeeConfig(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// ListFeeExceptions handles GET /tenants/{tenantID}/fee-exceptions
func (h *Handlers) ListFeeExceptions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	exceptions, err := h.svc.Fees.ListExceptions(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exceptions": exceptions})
}

// SetFeeException handles PUT /tenants/{tenantID}/members/{memberID}/fee-exception
func (h *Handlers) SetFeeException(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	var req feeExceptionRequest
	if !decode(w, r, &req) {
		return
	}
	exc := &domain.FeeException{MemberID: memberID, TenantID: tenantID, IsExempt: req.IsExempt, Amount: req.Amount}
	if err := h.svc.Fees.SetException(r.Context(), exc); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exc)
}

// RemoveFeeException handles DELETE /tenants/{tenantID}/members/{memberID}/fee-exception
func (h *Handlers) RemoveFeeException(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	if err := h.svc.Fees.RemoveException(r.Context(), tenantID, memberID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEffectiveFee handles GET /tenants/{tenantID}/members/{memberID}/fee
func (h *Handlers) GetEffectiveFee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	fee, err := h.svc.Fees.GetEffectiveFee(r.Context(), tenantID, memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}

// GenerateInvoices handles POST /tenants/{tenantID}/invoices/generate. Members without a fee
// are listed in the response instead of failing the request.
func (h *Handlers) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var req generateInvoicesRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := h.svc.Invoices.GenerateInvoices(r.Context(), tenantID, req.Month, req.Year)
	resp := generateInvoicesResponse{Created: created}
	var unconfigured *domain.UnconfiguredMembersError
	if errors.As(err, &unconfigured) {
		resp.Unconfigured = unconfigured.MemberIDs
	} else if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListInvoices handles GET /members/{memberID}/invoices
func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	invoices, err := h.svc.Invoices.ListInvoices(r.Context(), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

// PayInvoice handles POST /invoices/{invoiceID}/pay
func (h *Handlers) PayInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	var req payInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	paidAt := h.clock.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	inv, err := h.svc.Invoices.RecordPayment(r.Context(), invoiceID, paidAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// AddDebt handles POST /tenants/{tenantID}/members/{memberID}/debts
func (h *Handlers) AddDebt(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	var req debtRequest
	if !decode(w, r, &req) {
		return
	}
	debt := &domain.HistoricalDebt{
		MemberID:    memberID,
		TenantID:    tenantID,
		Amount:      req.Amount,
		Month:       req.Month,
		Year:        req.Year,
		Description: req.Description,
	}
	if err := h.svc.Debts.AddDebt(r.Context(), debt); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, debt)
}

// ListDebts handles GET /members/{memberID}/debts
func (h *Handlers) ListDebts(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	debts, err := h.svc.Debts.ListDebts(r.Context(), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": debts})
}

// MemberPaymentStatus handles GET /members/{memberID}/payment-status?as_of=YYYY-MM-DD
func (h *Handlers) MemberPaymentStatus(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Status.ResolveStatus(r.Context(), memberID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// TenantPaymentStatus handles GET /tenants/{tenantID}/payment-status?as_of=YYYY-MM-DD
func (h *Handlers) TenantPaymentStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	statuses, err := h.svc.Status.ResolveTenant(r.Context(), tenantID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": statuses})
}
