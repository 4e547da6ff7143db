package authz

import (
	"log/slog"
	"net/http"

	"github.com/quillpost/quillpost/internal/shared"
)

// Middleware guards routes whose decision needs no resource context, such as
// collection reads and create endpoints gated purely by the matrix. The
// decision (and its compiled filter) is stored in the request context for the
// handler.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// Require authorizes the (kind, action) pair against a nil resource and
// rejects the request when the matrix denies outright.
func (m Middleware) Require(kind ResourceKind, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			dec, err := m.Engine.Authorize(actor, kind, action, nil)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorize route", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !dec.Allowed {
				http.Error(w, http.StatusText(DenyStatus(actor)), DenyStatus(actor))
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithDecision(r.Context(), dec)))
		})
	}
}

// DenyError maps a denial to the sentinel error surfaced to the caller.
// Unknown actors get ErrNotFound so a denial is indistinguishable from a
// missing resource; identified actors get the uniform access-denied signal.
func DenyError(actor Actor) error {
	if !actor.Identified() {
		return shared.ErrNotFound
	}
	return shared.ErrAccessDenied
}

// DenyStatus maps a denial to the status surfaced to the caller. Identified
// actors learn the resource exists but is forbidden; unknown actors get the
// same answer as for a missing resource so denial leaks no existence
// information.
func DenyStatus(actor Actor) int {
	if !actor.Identified() {
		return http.StatusNotFound
	}
	return http.StatusForbidden
}
