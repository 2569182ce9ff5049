package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/utils"
)

type contextKey string

const userKey contextKey = "auth_user"

// User is the authenticated caller attached to the request context.
type User struct {
	ID    string
	Email string
	Phone string
}

// MockUser is the identity used when USE_MOCK_USER is set.
var MockUser = User{
	ID:    "00000000-0000-0000-0000-000000000001",
	Email: "mock.user@franxx.local",
}

type Authenticator struct {
	Verifier   Verifier
	Roles      *RoleCache
	ProjectRef string
	// Mock, when set, replaces token verification with a fixed identity.
	Mock *User

	log *logger.Logger
}

func NewAuthenticator(verifier Verifier, roles *RoleCache, projectRef string, log *logger.Logger) *Authenticator {
	return &Authenticator{Verifier: verifier, Roles: roles, ProjectRef: projectRef, log: log}
}

// Authenticate resolves the caller from the request. ErrNoToken means the request
// is anonymous.
func (a *Authenticator) Authenticate(r *http.Request) (*User, error) {
	if a.Mock != nil {
		u := *a.Mock
		return &u, nil
	}

	raw, err := ExtractTokenFromRequest(r, a.ProjectRef)
	if err != nil {
		return nil, err
	}
	claims, err := a.Verifier.Verify(r.Context(), raw)
	if err != nil {
		return nil, err
	}
	return &User{ID: claims.Subject, Email: claims.Email, Phone: claims.Phone}, nil
}

// RequireUser rejects anonymous requests with 401.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrNoToken) {
				a.log.LogSecurity("AUTH", fmt.Sprintf("Rejected token on %s %s: %v", r.Method, r.URL.Path, err))
			}
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin must run after RequireUser.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}

		role, err := a.Roles.Role(r.Context(), user.ID)
		if err != nil {
			a.log.Error("AUTH", fmt.Sprintf("Role lookup failed for %s: %v", user.ID, err))
			utils.WriteError(w, http.StatusInternalServerError, "Failed to resolve role", "internal error")
			return
		}
		if role != models.RoleAdmin {
			a.log.LogSecurity("AUTH", fmt.Sprintf("User %s (role %s) denied admin access to %s", user.ID, role, r.URL.Path))
			utils.WriteError(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// UserID extracts the caller id in handlers, "" when anonymous.
func UserID(ctx context.Context) string {
	if user, ok := UserFromContext(ctx); ok {
		return user.ID
	}
	return ""
}
