package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/iho/shopledger/internal/domain"
)

// RequestIDHeader carries the correlation id back to the caller.
const RequestIDHeader = "X-Request-ID"

// RequestContext copies the chi request id into the domain context so that
// audit records can carry it. It must run after chi's RequestID middleware;
// without one a random id is generated.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(domain.ContextWithRequestID(r.Context(), id)))
	})
}
