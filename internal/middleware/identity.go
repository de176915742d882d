package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/model"
)

// Identity headers. X-User-ID is set by the auth gateway in front of the service.
const (
	HeaderUserID  = "X-User-ID"
	HeaderGuestID = "X-Guest-ID"
)

type identityKey struct{}

// Identity resolves the caller from request headers and stores it in the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := model.Identity{
			UserID:  strings.TrimSpace(r.Header.Get(HeaderUserID)),
			GuestID: strings.TrimSpace(r.Header.Get(HeaderGuestID)),
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by Identity, or the zero identity.
func IdentityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(identityKey{}).(model.Identity)
	return id
}
