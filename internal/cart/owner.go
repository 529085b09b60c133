package cart

import (
	"github.com/google/uuid"

	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
)

// Owner identifies who a cart belongs to: a logged-in user or an anonymous
// session. Exactly one of the two must be set.
type Owner struct {
	UserID    *uuid.UUID
	SessionID *string
}

// OwnerForUser builds an owner for an authenticated user.
func OwnerForUser(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

// OwnerForSession builds an owner for an anonymous session.
func OwnerForSession(sessionID string) Owner {
	return Owner{SessionID: &sessionID}
}

// Validate enforces the exactly-one-identity rule.
func (o Owner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasSession := o.SessionID != nil && *o.SessionID != ""
	if hasUser == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner requires exactly one of user id or session id")
	}
	return nil
}

// IsSession reports whether the owner is an anonymous session.
func (o Owner) IsSession() bool {
	return o.SessionID != nil && *o.SessionID != ""
}
