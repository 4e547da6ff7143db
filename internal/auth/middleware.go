package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quillpost/quillpost/internal/authz"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the parsed credential claims, if any.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}

// Middleware resolves the acting identity from the Authorization header.
// Absent, malformed, expired or revoked credentials resolve to the anonymous
// actor rather than an error: the decision engine treats unknown actors
// uniformly and deny responses stay indistinguishable from missing resources.
type Middleware struct {
	Issuer   *TokenIssuer
	Denylist *Denylist
	Store    UserStore
	Logger   *slog.Logger
}

// Resolve builds the actor for each request. Role and activation state come
// from the account row, not the token, so demotions and deactivations bite
// immediately.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, claims := m.resolveActor(r)
		ctx := authz.ContextWithActor(r.Context(), actor)
		if claims != nil {
			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) resolveActor(r *http.Request) (authz.Actor, *Claims) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return authz.Anonymous(), nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return authz.Anonymous(), nil
	}

	claims, err := m.Issuer.Parse(raw)
	if err != nil {
		return authz.Anonymous(), nil
	}
	if m.Denylist != nil {
		revoked, err := m.Denylist.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("denylist lookup", slog.Any("error", err))
			}
			return authz.Anonymous(), nil
		}
		if revoked {
			return authz.Anonymous(), nil
		}
	}

	userID, err := claims.UserID()
	if err != nil {
		return authz.Anonymous(), nil
	}
	if userID == SuperadminID {
		return authz.Actor{ID: SuperadminID, Role: authz.RoleSuperadmin, IsActive: true}, claims
	}

	user, err := m.Store.GetByID(r.Context(), userID)
	if err != nil {
		return authz.Anonymous(), nil
	}
	return user.Actor(), claims
}
