package middleware

import (
	"net/http"
	"strings"

	"github.com/authwave/authwave/internal/token"

	"github.com/gin-gonic/gin"
)

// CPanelAccessCookie is the cookie carrying the cPanel access token
const CPanelAccessCookie = "cpanel_access_token"

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "INVALID_TOKEN",
		"message": "Invalid or expired token",
	})
	c.Abort()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireEndUser guards end-user endpoints with a bearer access token. Must
// run after AppGate: the token's app claim has to match the app that
// authenticated the request, so a token minted under one app can never reach
// another app's users.
func RequireEndUser(tokens *token.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := tokens.VerifyAccess(token.DomainEndUser, raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		app, ok := AppFromContext(c)
		if !ok || claims.AppID != app.ID {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireDeveloper guards portal endpoints with a bearer access token from
// the developer domain.
func RequireDeveloper(tokens *token.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := tokens.VerifyAccess(token.DomainDeveloper, raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextDeveloperID, claims.DeveloperID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireCPanel guards admin endpoints. The access token travels in an
// httpOnly cookie set during ticket redemption, never in a header the
// frontend could read.
func RequireCPanel(tokens *token.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CPanelAccessCookie)
		if err != nil || raw == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := tokens.VerifyAccess(token.DomainCPanel, raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextDeveloperID, claims.DeveloperID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}
