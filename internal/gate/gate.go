// Package gate decides which of the three top-level views a visitor sees.
package gate

import "github.com/Dhrumilshah777/imageDrop/internal/model"

// View is one of the three top-level views.
type View string

const (
	// ViewLoading is shown while the identity lookup has not finished.
	ViewLoading View = "loading"
	// ViewSignedOut is the sign-in call to action.
	ViewSignedOut View = "signed_out"
	// ViewSignedIn is the uploader plus the feed.
	ViewSignedIn View = "signed_in"
)

// AuthState is the result of resolving the visitor's identity.
type AuthState struct {
	Pending  bool
	Identity *model.Identity
}

// Decide maps an AuthState to a View.
func Decide(s AuthState) View {
	switch {
	case s.Pending:
		return ViewLoading
	case s.Identity != nil && s.Identity.UID != "":
		return ViewSignedIn
	default:
		return ViewSignedOut
	}
}
