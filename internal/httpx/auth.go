package httpx

import (
	"context"
	"net/http"
)

// Identity is the authenticated caller. Token verification and role checks
// live in outer middleware; handlers only read what it stored on the
// request context.
type Identity struct {
	UserID int64
	Role   string
}

func (id Identity) Admin() bool { return id.Role == "admin" }

type ctxKey int

const identityKey ctxKey = iota

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey).(Identity)
	return id, ok
}

// requireIdentity writes a 401 and returns false when no identity is on the
// request.
func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return id, false
	}
	if !id.Admin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return id, false
	}
	return id, true
}
