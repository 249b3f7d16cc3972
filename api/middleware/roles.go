package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/angelmondragon/homechef-backend/api/responses"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

// RequireRole admits callers whose token carries one of the given roles.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	names := make([]string, len(allowed))
	for i, role := range allowed {
		names[i] = string(role)
	}
	denied := pkgerrors.New(pkgerrors.CodeForbidden, strings.Join(names, " or ")+" role required")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(names, RoleFromContext(r.Context())) {
				responses.WriteError(r.Context(), logg, w, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
