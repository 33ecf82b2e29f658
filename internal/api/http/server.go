// Package http exposes the administrative billing API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"teambilling/internal/clock"
	"teambilling/internal/domain"
	"teambilling/internal/metrics"
	"teambilling/internal/security"
	"teambilling/internal/service"
)

// BatchRunner triggers and reports on batch jobs.
type BatchRunner interface {
	RunDailyEvaluation(ctx context.Context, asOf time.Time) (*domain.BatchReport, error)
	LastReport(ctx context.Context) (*domain.BatchReport, error)
	MarkLateInvoices(ctx context.Context, asOf time.Time) (int64, error)
}

// Services holds everything the handlers call into.
type Services struct {
	Admin         service.AdminService
	Fees          service.FeeService
	Invoices      service.InvoiceService
	Debts         service.DebtService
	Status        service.PaymentStatusService
	Notifications service.NotificationService
	Batch         BatchRunner
	Signer        security.PaymentLinkSigner
}

type Handlers struct {
	svc    *Services
	clock  clock.Clock
	health func(ctx context.Context) error
}

// NewHandlers creates the API handlers. health may be nil.
func NewHandlers(svc *Services, clk clock.Clock, health func(ctx context.Context) error) *Handlers {
	return &Handlers{svc: svc, clock: clk, health: health}
}

// RegisterRoutes registers all admin routes on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Batch
	r.HandleFunc("/billing/run", h.RunBilling).Methods("POST")
	r.HandleFunc("/billing/reports/latest", h.LatestReport).Methods("GET")
	r.HandleFunc("/invoices/mark-late", h.MarkLate).Methods("POST")

	// Tenants
	r.HandleFunc("/tenants", h.CreateTenant).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}", h.GetTenant).Methods("GET")
	r.HandleFunc("/tenants/{tenantID}", h.DeleteTenant).Methods("DELETE")
	r.HandleFunc("/tenants/{tenantID}/activate", h.ActivateTenant).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}/pause", h.PauseTenant).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}/block", h.BlockTenant).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}/subscription-payments", h.RecordSubscriptionPayment).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}/subscription-payments", h.ListSubscriptionPayments).Methods("GET")
	r.HandleFunc("/tenants/{tenantID}/members", h.AddMember).Methods("POST")

	// Fees
	r.HandleFunc("/tenants/{tenantID}/fee-config", h.GetFeeConfig).Methods("GET")
	r.HandleFunc("/tenants/{tenantID}/fee-config", h.SetFeeConfig).Methods("PUT")
	r.HandleFunc("/tenants/{tenantID}/fee-exceptions", h.ListFeeExceptions).Methods("GET")
	r.HandleFunc("/tenants/{tenantID}/members/{memberID}/fee-exception", h.SetFeeException).Methods("PUT")
	r.HandleFunc("/tenants/{tenantID}/members/{memberID}/fee-exception", h.RemoveFeeException).Methods("DELETE")
	r.HandleFunc("/tenants/{tenantID}/members/{memberID}/fee", h.GetEffectiveFee).Methods("GET")

	// Invoices, debt and payment status
	r.HandleFunc("/tenants/{tenantID}/invoices/generate", h.GenerateInvoices).Methods("POST")
	r.HandleFunc("/members/{memberID}/invoices", h.ListInvoices).Methods("GET")
	r.HandleFunc("/invoices/{invoiceID}/pay", h.PayInvoice).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}/members/{memberID}/debts", h.AddDebt).Methods("POST")
	r.HandleFunc("/members/{memberID}/debts", h.ListDebts).Methods("GET")
	r.HandleFunc("/members/{memberID}/payment-status", h.MemberPaymentStatus).Methods("GET")
	r.HandleFunc("/tenants/{tenantID}/payment-status", h.TenantPaymentStatus).Methods("GET")

	// Notifications
	r.HandleFunc("/tenants/{tenantID}/notifications", h.ListNotifications).Methods("GET")
	r.HandleFunc("/tenants/{tenantID}/notifications", h.SendNotification).Methods("POST")
	r.HandleFunc("/tenants/{tenantID}/notifications/{notificationID}/read", h.MarkNotificationRead).Methods("POST")
}

// RouterConfig wires the public endpoints and middleware around the admin routes.
type RouterConfig struct {
	AdminTokenHash string
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
}

// NewRouter builds the full HTTP surface: /healthz, /metrics and payment link verification
// are public, everything under /api/v1 requires the admin token.
func NewRouter(h *Handlers, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger)
	r.Use(mux.MiddlewareFunc(metrics.HTTPMiddleware(cfg.Metrics, routeName)))

	r.HandleFunc("/healthz", h.Health).Methods("GET")
	if cfg.Registry != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Registry)).Methods("GET")
	}
	r.HandleFunc("/pay/verify", h.VerifyPaymentLink).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(AdminAuth(cfg.AdminTokenHash))
	h.RegisterRoutes(api)
	return r
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VerifyPaymentLink handles GET /pay/verify?token=...
func (h *Handlers) VerifyPaymentLink(w http.ResponseWriter, r *http.Request) {
	if h.svc.Signer == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "payment links are not signed"})
		return
	}
	claims, err := h.svc.Signer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	resp := map[string]any{"tenant_id": claims.TenantID, "amount": claims.Amount}
	if claims.ExpiresAt != nil {
		resp["expires_at"] = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}
