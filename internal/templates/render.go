// Package templates holds the browser-facing pages served on link-click
// flows: email verification results, password reset and set-password forms,
// and the account deletion confirmation. These render in the end-user's
// browser outside any frontend the app developer controls, so they carry
// their own minimal styling.
package templates

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

// RenderTempl renders a templ component to a Gin context
func RenderTempl(c *gin.Context, status int, component templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")

	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
	}
}
