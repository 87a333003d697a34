package auth

import (
	"net"
	"net/http"
	"strings"
)

// Authorizer validates a presented credential against the stored API key.
type Authorizer struct {
	storedKey string
	hasher    *PasswordHasher
}

// NewAuthorizer creates an authorizer for the given stored key. The key may
// be plaintext (legacy installs) or a bcrypt hash (post-migration installs).
func NewAuthorizer(storedKey string) *Authorizer {
	return &Authorizer{
		storedKey: storedKey,
		hasher:    NewPasswordHasher(),
	}
}

// Authorize reports whether the provided token matches the stored key.
// The plaintext comparison runs first so stores that predate the hashing
// migration keep working; the hash check covers everything after it.
func (a *Authorizer) Authorize(provided string) bool {
	if provided == "" {
		return false
	}

	if provided == a.storedKey {
		return true
	}

	if IsHash(a.storedKey) && a.hasher.Verify(a.storedKey, provided) {
		return true
	}

	return false
}

// Token extracts the credential from an Authorization header value of the
// form "Basic <token>". The second return is false when the header does not
// carry that shape.
func Token(header string) (string, bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := header[len(prefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// ClientIP extracts the client address for audit logging.
// Order: X-Forwarded-For (first IP) -> X-Real-IP -> RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return "unknown"
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		part := xff
		if i := strings.IndexByte(xff, ','); i >= 0 {
			part = xff[:i]
		}
		part = strings.TrimSpace(part)
		if ip := net.ParseIP(part); ip != nil {
			return part
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if ip := net.ParseIP(r.RemoteAddr); ip != nil {
		return r.RemoteAddr
	}

	return "unknown"
}
