package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/service"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTenantDeleted),
		errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, domain.ErrLockNotAcquired),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicateInvoice):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// decode reads a JSON body into v. An empty body leaves v at its zero value.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID reads a positive int32 route variable.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int32, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 32)
	if err != nil || id <= 0 {
		badRequest(w, "invalid "+name)
		return 0, false
	}
	return int32(id), true
}

func queryInt(r *http.Request, name string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}

// asOf reads the as_of query parameter. A date means the end of that UTC day; without one the
// current time is used.
func (h *Handlers) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.clock.Now(), true
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		badRequest(w, "as_of must be formatted as YYYY-MM-DD")
		return time.Time{}, false
	}
	return d.Add(24*time.Hour - time.Second), true
}
