// Package identity resolves bearer tokens into actor context at the service
// boundary. Token issuance belongs to the external identity provider; this
// package only verifies and extracts the claims the ledgers trust.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/requestcontext"
)

// Claims represents the JWT claims carried by access tokens.
type Claims struct {
	ActorID  string `json:"actor_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier handles JWT validation and actor-context extraction.
type Verifier struct {
	signingKey []byte
	issuer     string
}

func NewVerifier(signingKey string, issuer string) *Verifier {
	return &Verifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateToken mints a signed token for the given actor. Used by local
// development and tests; production tokens come from the identity provider.
func (v *Verifier) GenerateToken(actor requestcontext.ActorContext, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID:  actor.ActorID,
		TenantID: actor.TenantID.String(),
		Role:     string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(v.signingKey)
}

// VerifyToken validates the token signature and expiry and resolves the actor
// context the ledgers run under.
func (v *Verifier) VerifyToken(tokenString string) (requestcontext.ActorContext, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "token carries no tenant")
	}
	role := id.Role(claims.Role)
	if !role.Known() {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "token carries an unknown role")
	}
	if claims.ActorID == "" {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "token carries no actor")
	}

	return requestcontext.ActorContext{
		ActorID:  claims.ActorID,
		TenantID: tenantID,
		Role:     role,
	}, nil
}
