package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderToString(t *testing.T, component templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, component.Render(context.Background(), &sb))
	return sb.String()
}

func TestMessagePage(t *testing.T) {
	out := renderToString(t, MessagePage(MessagePageProps{
		Success: true,
		Title:   "Email verified",
		Message: "You can close this page.",
	}))
	assert.Contains(t, out, `<h1 class="ok">Email verified</h1>`)
	assert.Contains(t, out, "You can close this page.")

	out = renderToString(t, MessagePage(MessagePageProps{
		Title:   "Link invalid",
		Message: "Request a new one.",
	}))
	assert.Contains(t, out, `<h1 class="err">Link invalid</h1>`)
}

func TestPasswordFormPageEscapesToken(t *testing.T) {
	out := renderToString(t, PasswordFormPage(PasswordFormPageProps{
		Token:  `abc"><script>alert(1)</script>`,
		Action: "/auth/reset-password",
	}))
	assert.NotContains(t, out, "<script>", "token must be escaped into the value attribute")
	assert.Contains(t, out, `action="/auth/reset-password"`)
	assert.Contains(t, out, `name="confirm"`)
}

func TestDeleteAccountPagePasswordField(t *testing.T) {
	withPassword := renderToString(t, DeleteAccountPage(DeleteAccountPageProps{
		Email:           "user@example.com",
		Token:           "tok-1",
		Action:          "/auth/delete-account/confirm",
		RequirePassword: true,
	}))
	assert.Contains(t, withPassword, "user@example.com")
	assert.Contains(t, withPassword, `name="password"`)

	// Google-only accounts have no password to re-enter
	googleOnly := renderToString(t, DeleteAccountPage(DeleteAccountPageProps{
		Email:  "user@example.com",
		Token:  "tok-2",
		Action: "/auth/delete-account/confirm",
	}))
	assert.NotContains(t, googleOnly, `name="password"`)
}
