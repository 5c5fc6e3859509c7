package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID  uuid.UUID
	BusinessID *uuid.UUID
	Role       enums.ActorRole
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients. Buyers carry
// only a subject id; business staff also carry the business they act for.
type AccessTokenClaims struct {
	SubjectID  uuid.UUID       `json:"subject_id"`
	BusinessID *uuid.UUID      `json:"business_id,omitempty"`
	Role       enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
