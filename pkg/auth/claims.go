package auth

import (
	"github.com/etherloops/ether-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Email  string
}

// AccessTokenClaims represents the JWT issued by the auth provider.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	Email  string         `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the read-only view of an authenticated caller. Role is derived
// from the verified token and never set by handlers.
type Identity struct {
	userID uuid.UUID
	role   enums.UserRole
	email  string
}

// IdentityFromClaims derives the caller identity from verified claims.
func IdentityFromClaims(claims *AccessTokenClaims) Identity {
	if claims == nil {
		return Identity{}
	}
	return Identity{userID: claims.UserID, role: claims.Role, email: claims.Email}
}

// NewIdentity builds an identity directly; used by tests and internal tooling.
func NewIdentity(userID uuid.UUID, role enums.UserRole) Identity {
	return Identity{userID: userID, role: role}
}

func (i Identity) UserID() uuid.UUID    { return i.userID }
func (i Identity) Role() enums.UserRole { return i.role }
func (i Identity) Email() string        { return i.email }
func (i Identity) IsAdmin() bool        { return i.role == enums.UserRoleAdmin }
func (i Identity) IsVendor() bool       { return i.role == enums.UserRoleVendor }
func (i Identity) IsZero() bool         { return i.userID == uuid.Nil }
