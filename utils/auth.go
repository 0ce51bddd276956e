package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"researchhub/config"
)

// Context keys set by the auth middleware.
const (
	CtxSessionID = "sessionID"
	CtxEmail     = "userEmail"
	CtxAdmin     = "isAdmin"
)

const tokenIssuer = "researchhub"

// --- JWT Handling ---

// Claims defines the structure of the JWT claims. A token names a server-side session.
type Claims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"` // Empty for anonymous sessions
	Admin     bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed token for a session.
func GenerateJWT(sessionID, email string, admin bool, cfg *config.Config) (string, error) {
	if cfg.JwtSecret == "" {
		log.Error().Msg("JWT secret is empty, cannot generate token")
		return "", errors.New("JWT secret is not configured")
	}

	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		Email:     email,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT parses and validates a token string.
func ValidateJWT(tokenString string, cfg *config.Config) (*Claims, error) {
	if cfg.JwtSecret == "" {
		return nil, errors.New("JWT secret is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JwtSecret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token has expired")
		}
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// bearerToken extracts the token from the Authorization header.
// ok is false when the header is absent; err is set when it is malformed.
func bearerToken(c *gin.Context) (string, bool, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false, nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", true, errors.New("Authorization header format must be Bearer {token}")
	}
	return parts[1], true, nil
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(CtxSessionID, claims.SessionID)
	c.Set(CtxEmail, claims.Email)
	c.Set(CtxAdmin, claims.Admin)
}

// AuthMiddleware requires a valid token and a signed-in user.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, present, err := bearerToken(c)
		if !present {
			GinUnauthorized(c, "Authorization header required")
			return
		}
		if err != nil {
			GinError(c, http.StatusBadRequest, err.Error())
			return
		}

		claims, err := ValidateJWT(tokenString, cfg)
		if err != nil {
			GinUnauthorized(c, fmt.Sprintf("Invalid token: %v", err))
			return
		}
		if claims.Email == "" {
			GinUnauthorized(c, "Sign in required")
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth reads a token when one is sent. An invalid token is rejected;
// a missing one lets the request through anonymously.
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, present, err := bearerToken(c)
		if !present {
			c.Next()
			return
		}
		if err != nil {
			GinError(c, http.StatusBadRequest, err.Error())
			return
		}

		claims, err := ValidateJWT(tokenString, cfg)
		if err != nil {
			GinUnauthorized(c, fmt.Sprintf("Invalid token: %v", err))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxAdmin) {
			GinForbidden(c, "Administrator access required")
			return
		}
		c.Next()
	}
}
