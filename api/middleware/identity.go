package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/feiralivre/marketplace-backend/api/responses"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
)

// Identity headers are stamped by the gateway after it authenticates the
// caller. Anonymous storefront traffic carries only a session id.
const (
	headerUserID    = "X-User-Id"
	headerSessionID = "X-Session-Id"
	headerActorRole = "X-Actor-Role"
	headerVendorID  = "X-Vendor-Id"
)

type identityCtxKey struct{}

type Identity struct {
	UserID    *uuid.UUID
	SessionID string
	Role      enums.ActorRole
	VendorID  *uuid.UUID
}

func (i Identity) HasUser() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

// Extract parses the gateway identity headers into the request context.
// Malformed ids fail the request before any handler runs.
func Extract(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := parseIdentity(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil && identity.HasUser() {
				ctx = logg.WithUserID(ctx, identity.UserID.String())
				ctx = logg.WithActorRole(ctx, identity.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that carry no authenticated user.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if !identity.HasUser() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

func IdentityFromContext(ctx context.Context) Identity {
	if identity, ok := ctx.Value(identityCtxKey{}).(Identity); ok {
		return identity
	}
	return Identity{}
}

func parseIdentity(r *http.Request) (Identity, error) {
	identity := Identity{
		SessionID: strings.TrimSpace(r.Header.Get(headerSessionID)),
		Role:      enums.ActorRoleBuyer,
	}

	if raw := strings.TrimSpace(r.Header.Get(headerUserID)); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id header")
		}
		identity.UserID = &id
	}

	if raw := strings.TrimSpace(r.Header.Get(headerActorRole)); raw != "" {
		role, err := enums.ParseActorRole(raw)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor role header")
		}
		identity.Role = role
	}

	if raw := strings.TrimSpace(r.Header.Get(headerVendorID)); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor id header")
		}
		identity.VendorID = &id
	}

	if identity.Role == enums.ActorRoleVendor && identity.VendorID == nil {
		return Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "vendor role requires a vendor id header")
	}

	return identity, nil
}
