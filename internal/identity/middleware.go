package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Middleware authenticates bearer tokens and resolves the principal for
// every request. Resolution happens against the store each time so role
// changes and access grants take effect without reissuing tokens.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate rejects requests without a valid bearer token.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		userID, err := m.Service.VerifyToken(parts[1])
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		principal, err := m.Service.Resolve(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("resolve principal", slog.String("user_id", userID.String()), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireMinRole gates a route on a minimum role. Department scoping stays
// in the services; this only covers coarse role floors.
func (m Middleware) RequireMinRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if !principal.HasMinRole(min) {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
