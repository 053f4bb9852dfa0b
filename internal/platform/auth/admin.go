package auth

import (
	"net/http"
	"strings"

	"github.com/example/stream-platform/internal/platform/api"
)

// RequireAdmin passes only requests whose token carried role=admin. It must
// run after RequireUser, which is what puts the role into the context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if !strings.EqualFold(strings.TrimSpace(role), "admin") {
			api.Forbidden(w, "ADMIN_ONLY", "Admin role required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
