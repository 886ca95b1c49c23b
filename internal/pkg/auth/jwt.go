// internal/pkg/auth/jwt.go
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vaarahi/storefront/internal/config"
)

// Claims represents the JWT claims. SessionID binds the token to the
// shopper session whose cart and current-user record it unlocks.
type Claims struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	SessionID  string `json:"session_id"`
	RememberMe bool   `json:"remember_me,omitempty"`
	TokenType  string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT operations
type JWTManager struct {
	config config.JWTConfig
	issuer string
	now    func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg config.JWTConfig, issuer string) *JWTManager {
	return &JWTManager{
		config: cfg,
		issuer: issuer,
		now:    time.Now,
	}
}

// GenerateAccessToken issues a token; remember-me tokens use the longer expiry.
func (j *JWTManager) GenerateAccessToken(userID, email, sessionID string, rememberMe bool) (string, time.Time, error) {
	now := j.now().UTC()
	expiry := j.config.AccessTokenExpiry
	if rememberMe {
		expiry = j.config.RememberMeExpiry
	}
	expiresAt := now.Add(expiry)

	claims := &Claims{
		UserID:     userID,
		Email:      email,
		SessionID:  sessionID,
		RememberMe: rememberMe,
		TokenType:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   "user:" + userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken validates and parses an access token
func (j *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.config.Secret), nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.TokenType != "access" {
		return nil, fmt.Errorf("invalid token type: expected access, got %s", claims.TokenType)
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("token is not bound to a session")
	}

	return claims, nil
}

// ExtractTokenFromHeader extracts JWT token from Authorization header
func ExtractTokenFromHeader(authHeader string) string {
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}
