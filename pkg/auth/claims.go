package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email,omitempty"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
