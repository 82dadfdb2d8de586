package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/StepwiseEngine/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

type credential struct {
	user string
	pass string
	role Role
}

// authConfig is nil or empty when authentication is disabled.
type authConfig struct {
	creds []credential
}

var auth *authConfig

// newAuthConfig enables authentication only when admin credentials are
// present. Operator credentials are optional.
func newAuthConfig(adminUser, adminPass, operatorUser, operatorPass string) *authConfig {
	if adminUser == "" || adminPass == "" {
		return &authConfig{}
	}
	cfg := &authConfig{creds: []credential{{adminUser, adminPass, RoleAdmin}}}
	if operatorUser != "" && operatorPass != "" {
		cfg.creds = append(cfg.creds, credential{operatorUser, operatorPass, RoleOperator})
	}
	return cfg
}

// InitAuth loads credentials from STEPWISE_ADMIN_USER, STEPWISE_ADMIN_PASS,
// STEPWISE_OPERATOR_USER and STEPWISE_OPERATOR_PASS, each also readable
// from a *_FILE path. With no admin credentials the API is open.
func InitAuth() error {
	values, err := config.ResolveSecrets("STEPWISE_ADMIN_USER", "STEPWISE_ADMIN_PASS", "STEPWISE_OPERATOR_USER", "STEPWISE_OPERATOR_PASS")
	if err != nil {
		return fmt.Errorf("api credentials: %w", err)
	}
	auth = newAuthConfig(values[0], values[1], values[2], values[3])
	return nil
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && len(auth.creds) > 0
}

// authenticate returns the caller's role, or "" if the credentials are
// missing or wrong.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	for _, c := range auth.creds {
		if secureCompare(user, c.user) && secureCompare(pass, c.pass) {
			return c.role
		}
	}
	return ""
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Stepwise Engine"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
