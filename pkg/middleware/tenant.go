package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
)

// RequireTenant resolves the tenant from header and rejects requests that do
// not carry a valid one.
func RequireTenant(header string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeTenantMissing, "tenant header is required", map[string]string{"header": header})
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil || id == uuid.Nil {
				composables.UseLogger(r.Context()).WithField("tenant", raw).Warn("invalid tenant header")
				_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeTenantMissing, "tenant header is not a valid id", map[string]string{"header": header})
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), id)))
		})
	}
}

// WithSubject copies the actor role from header into the request context.
func WithSubject(header string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role := strings.TrimSpace(r.Header.Get(header)); role != "" {
				r = r.WithContext(composables.WithSubject(r.Context(), role))
			}
			next.ServeHTTP(w, r)
		})
	}
}
