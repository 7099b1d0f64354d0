package templates

// MessagePageProps contains properties for the outcome page shown after a
// link click (verification result, deletion result, confirmation errors)
type MessagePageProps struct {
	Success bool
	Title   string
	Message string
}

// PasswordFormPageProps contains properties for the reset-password and
// set-password form pages. Action is the relative endpoint the form posts to.
type PasswordFormPageProps struct {
	Token  string
	Action string
}

// DeleteAccountPageProps contains properties for the deletion confirmation
// page. RequirePassword is false for Google-only accounts, which have no
// password to re-enter.
type DeleteAccountPageProps struct {
	Token           string
	Email           string
	Action          string
	RequirePassword bool
}
