package adminkit

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is who a validated token says the caller is.
type Identity struct {
	UserID   string
	TenantID string
}

// TokenValidator validates a bearer token.
type TokenValidator interface {
	ValidateToken(token string) (*Identity, error)
}

// Claims is the JWT payload understood by JWTValidator. The user id is the
// "uid" claim, falling back to "sub".
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid,omitempty"`
	TenantID string `json:"tid,omitempty"`
}

// JWTValidator validates HMAC signed JWTs.
type JWTValidator struct {
	signingKey []byte
	issuer     string
}

// NewJWTValidator creates a validator. An empty issuer disables the issuer check.
func NewJWTValidator(signingKey, issuer string) *JWTValidator {
	return &JWTValidator{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// ValidateToken implements TokenValidator.
func (v *JWTValidator) ValidateToken(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: no subject", ErrTokenInvalid)
	}

	return &Identity{UserID: userID, TenantID: claims.TenantID}, nil
}
