package security

import (
	"crypto/subtle"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"

	"rifa/internal/status"
)

// AdminGuard checks the secret key carried in admin URLs. A bcrypt hash takes
// precedence over the plain key when both are configured.
type AdminGuard struct {
	secret []byte
	hash   []byte
}

func NewAdminGuard(secret, hash string) *AdminGuard {
	return &AdminGuard{secret: []byte(secret), hash: []byte(hash)}
}

func (g *AdminGuard) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	if len(g.hash) > 0 {
		return bcrypt.CompareHashAndPassword(g.hash, []byte(candidate)) == nil
	}
	if len(g.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(candidate)) == 1
}

// Middleware rejects requests whose {secretKey} path value does not match.
func (g *AdminGuard) Middleware(e *core.RequestEvent) error {
	if !g.Verify(e.Request.PathValue("secretKey")) {
		e.App.Logger().Warn("Rejected admin request", "ip", e.RealIP())
		return apis.NewForbiddenError(status.ErrInvalidAdminSecret.Error(), nil)
	}
	return e.Next()
}
