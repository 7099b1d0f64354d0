package middleware

import (
	"errors"
	"net/http"

	"github.com/authwave/authwave/internal/services"

	"github.com/gin-gonic/gin"
)

// Credential headers for the app gate
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderAPISecret = "X-API-Secret"
)

// AppGate authenticates the calling application before any end-user endpoint
// runs. The key arrives in the X-API-Key header or, for link-click endpoints
// that cannot set headers, in the :apiKey path segment; the secret is always
// a header.
func AppGate(gate *services.GateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			apiKey = c.Param("apiKey")
		}
		apiSecret := c.GetHeader(HeaderAPISecret)

		result, err := gate.Authorize(apiKey, apiSecret, c.FullPath())
		if err != nil {
			status, code, msg := gateError(err)
			c.JSON(status, gin.H{"success": false, "error": code, "message": msg})
			c.Abort()
			return
		}

		c.Set(ContextApp, result.App)
		c.Next()
	}
}

func gateError(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrMissingCredentials):
		return http.StatusUnauthorized, "MISSING_CREDENTIALS", "API key and secret are required"
	case errors.Is(err, services.ErrPlanInactive):
		return http.StatusForbidden, "PLAN_INACTIVE", "No active plan for this application"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid API credentials"
	default:
		return http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong"
	}
}
