// Package middleware provides HTTP middleware for the storefront API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopstack/storefront/internal/app/metrics"
	"github.com/shopstack/storefront/internal/app/services/auth"
	apperrors "github.com/shopstack/storefront/internal/errors"
	"github.com/shopstack/storefront/internal/httputil"
	"github.com/shopstack/storefront/pkg/logger"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier validates a bearer token and returns the caller identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Authenticator authenticates requests with bearer tokens.
type Authenticator struct {
	verifier TokenVerifier
	log      *logger.Logger
}

// NewAuthenticator creates the authentication middleware. A nil logger
// defaults to a component logger.
func NewAuthenticator(verifier TokenVerifier, log *logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewDefault("middleware")
	}
	return &Authenticator{verifier: verifier, log: log}
}

// Handler rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.reject(w, r, apperrors.Unauthorized(apperrors.CodeNoToken, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			a.reject(w, r, apperrors.Unauthorized(apperrors.CodeTokenMalformed, "authorization header must be a bearer token"))
			return
		}

		identity, err := a.verifier.Verify(parts[1])
		if err != nil {
			a.reject(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated callers that lack the admin role.
// It must be chained after Handler so missing tokens still fail with 401.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			a.reject(w, r, apperrors.Unauthorized(apperrors.CodeNoToken, "missing authorization header"))
			return
		}
		if !identity.IsAdmin {
			httputil.WriteError(w, apperrors.Forbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal(err)
	}
	metrics.RecordAuthFailure(string(svcErr.Code))
	a.log.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"reason": svcErr.Code,
	}).Warn("authentication failed")
	httputil.WriteError(w, svcErr)
}

// IdentityFromContext returns the authenticated identity stored by Handler.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	return identity, ok
}

// ContextWithIdentity returns a context carrying the given identity. Intended
// for tests and internal calls.
func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
