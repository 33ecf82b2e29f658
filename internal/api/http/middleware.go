package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"teambilling/internal/logger"
	"teambilling/internal/security"
)

// AdminAuth requires a bearer token matching the configured bcrypt hash.
func AdminAuth(tokenHash string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided"})
				return
			}
			if !security.VerifyAdminToken(tokenHash, token) {
				logger.Warn("Rejected admin request", "path", r.URL.Path, "remote", r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs every request at debug level.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
