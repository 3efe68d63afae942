package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "inkwell-api"
	TokenAudience = "inkwell-client"
)

// ErrInvalidToken covers every reason a bearer token is rejected.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims is the subset of JWT claims the API relies on.
type TokenClaims struct {
	UserID   uint
	Username string
	IsAdmin  bool
	ID       string
}

// Resolver re-reads the account behind verified claims so that deleted users are rejected
// and role changes apply before the token expires. It returns ErrInvalidToken to reject.
type Resolver func(ctx context.Context, claims *TokenClaims) (*TokenClaims, error)

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	resolve Resolver
}

// NewTokenManager returns a manager signing with secret; tokens expire after ttl.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SetResolver installs r on every auth middleware built from m.
func (m *TokenManager) SetResolver(r Resolver) {
	m.resolve = r
}

// TTL is the lifetime of issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a signed token for the user.
func (m *TokenManager) Issue(userID uint, username string, isAdmin bool) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := m.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"adm":      isAdmin,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(m.ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies signature, issuer, audience and expiry and returns the claims.
func (m *TokenManager) Parse(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{UserID: uint(userID)}
	out.Username, _ = claims["username"].(string)
	out.IsAdmin, _ = claims["adm"].(bool)
	out.ID, _ = claims["jti"].(string)
	return out, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// authenticate parses raw and runs the resolver, if any.
func (m *TokenManager) authenticate(c *fiber.Ctx, raw string) (*TokenClaims, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return nil, err
	}
	if m.resolve == nil {
		return claims, nil
	}
	return m.resolve(c.UserContext(), claims)
}

// deny answers 401 for rejected tokens and 500 for resolver failures.
func deny(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrInvalidToken) {
		return c.Status(fiber.StatusUnauthorized).Send(nil)
	}
	Logger.ErrorContext(c.UserContext(), "Token resolution failed", slog.String("error", err.Error()))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.Map{"name": "InternalError", "message": "Internal server error"},
	})
}

func setUser(c *fiber.Ctx, claims *TokenClaims) {
	c.Locals("userID", claims.UserID)
	c.Locals("claims", claims)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.UserID))
}

// AuthRequired rejects requests without a valid bearer token with an empty 401.
func AuthRequired(tm *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := tm.authenticate(c, BearerToken(c))
		if err != nil {
			return deny(c, err)
		}
		setUser(c, claims)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present. Missing or invalid
// tokens leave the request anonymous.
func OptionalAuth(tm *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := BearerToken(c); raw != "" {
			if claims, err := tm.authenticate(c, raw); err == nil {
				setUser(c, claims)
			}
		}
		return c.Next()
	}
}

// WebSocketAuthRequired accepts the token from the "token" query parameter, since browsers
// cannot set headers on websocket upgrades, falling back to the Authorization header.
func WebSocketAuthRequired(tm *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("token")
		if raw == "" {
			raw = BearerToken(c)
		}
		claims, err := tm.authenticate(c, raw)
		if err != nil {
			return deny(c, err)
		}
		setUser(c, claims)
		return c.Next()
	}
}

// UserID returns the authenticated user's ID, or 0 for anonymous requests.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
