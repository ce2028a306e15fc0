// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const ownerKey ctxKey = "owner"

// HealthPath is served without a client certificate.
const HealthPath = "/healthz"

// CertAuth is a middleware that enforces mutual TLS authentication.
//
// The Common Name of the client certificate identifies the vault owner and
// is stored in the request context. HealthPath is excluded so probes can
// run without credentials.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			next.ServeHTTP(w, r)
			return
		}
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		owner := r.TLS.PeerCertificates[0].Subject.CommonName
		if owner == "" {
			http.Error(w, "client certificate has no common name", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// WithOwner returns a copy of ctx carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// GetOwnerFromContext returns the authenticated vault owner, or an empty
// string if there is none.
func GetOwnerFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ownerKey).(string); ok {
		return s
	}
	return ""
}
