// Package model defines the data structures shared across the application.
package model

import (
	"fmt"
	"time"
)

// User represents a registered account.
//
// Accounts come from two places: GitHub OAuth (GitHubID set, no password)
// and email/password sign-up (PasswordHash set, GitHubID zero). The internal
// ID is an xid either way, so the rest of the app never cares which.
type User struct {
	ID           string    `json:"id"          db:"id"`
	GitHubID     int64     `json:"githubId,omitempty" db:"github_id"` // 0 when not linked to GitHub
	Email        string    `json:"email"       db:"email"`
	DisplayName  string    `json:"displayName" db:"display_name"`
	PhotoURL     string    `json:"photoURL"    db:"photo_url"`
	PasswordHash string    `json:"-"           db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"   db:"updated_at"`
}

// Identity is the uploader identity handed to the upload and feed
// components. It is a snapshot: later profile edits do not flow into
// images that were already uploaded.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Identity returns the user's current identity snapshot.
func (u *User) Identity() Identity {
	return Identity{
		UID:         u.ID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

// AnonymousName is shown for uploaders without a display name.
const AnonymousName = "Anonymous"

// FallbackAvatarURL returns a generated avatar for uploaders without a
// profile photo. The same uid always maps to the same avatar.
func FallbackAvatarURL(uid string) string {
	return fmt.Sprintf("https://i.pravatar.cc/40?u=%s", uid)
}
