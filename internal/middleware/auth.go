package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/jwt"
	"github.com/mx-space/wiki/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeySID    = "session_id"
	ContextKeyRole   = "role"
)

// TokenValidator checks a bearer token and the session it is bound to.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
	Touch(userID, sessionID string)
}

// Authenticator resolves the caller from a bearer token.
type Authenticator struct {
	tokens TokenValidator
	db     *gorm.DB
}

func NewAuthenticator(tokens TokenValidator, db *gorm.DB) *Authenticator {
	return &Authenticator{tokens: tokens, db: db}
}

// Auth rejects requests without a valid token.
func (a *Authenticator) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.authenticate(c); err != nil {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the caller if a valid token is present, but does not
// block the request.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = a.authenticate(c)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) error {
	token := extractToken(c)
	if token == "" {
		return errors.New("token is required")
	}
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return err
	}

	var profile models.ProfileModel
	if err := a.db.Select("id", "role").Where("id = ?", claims.UserID).First(&profile).Error; err != nil {
		return err
	}

	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeySID, claims.SessionID)
	c.Set(ContextKeyRole, profile.Role)
	a.tokens.Touch(claims.UserID, claims.SessionID)
	return nil
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) string {
	return c.GetString(ContextKeySID)
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextKeyRole) == models.RoleAdmin
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
