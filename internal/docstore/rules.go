package docstore

import "fmt"

// Authorize applies the ownership rules to a write made by the caller auth.
//
//   - the caller must be signed in
//   - the document key must equal the record id
//   - in "images" the record's userId must be the caller
//   - in "users/{uid}/images" both {uid} and userId must be the caller
//   - nothing else is writable
func Authorize(auth string, w Write) error {
	if auth == "" {
		return denied(w, "not signed in")
	}
	owner, err := ParsePath(w.Collection)
	if err != nil {
		return denied(w, err.Error())
	}
	if w.ID == "" || w.ID != w.Image.ID {
		return denied(w, "document key does not match record id")
	}
	if w.Image.UserID != auth {
		return denied(w, "record belongs to another user")
	}
	if w.Collection != Global && owner != auth {
		return denied(w, "collection belongs to another user")
	}
	return nil
}

func denied(w Write, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrPermissionDenied, w.DocPath(), reason)
}

// AuthorizeAll checks every write in a batch. The first violation fails the
// whole batch.
func AuthorizeAll(auth string, writes []Write) error {
	for _, w := range writes {
		if err := Authorize(auth, w); err != nil {
			return err
		}
	}
	return nil
}
