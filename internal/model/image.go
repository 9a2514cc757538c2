// Package model defines the data structures shared across the application.
package model

import (
	"encoding/json"
	"time"
)

// Image is one uploaded image visible in the feed.
//
// The same record lives in two document collections (the global "images"
// feed and the uploader's "users/{uid}/images" mirror) under the same ID.
// Records are never mutated after creation.
type Image struct {
	ID           string    `json:"id"           validate:"required"`
	URL          string    `json:"url"          validate:"required,url|datauri"`
	UserID       string    `json:"userId"       validate:"required"`
	UserName     string    `json:"userName"`
	UserPhotoURL string    `json:"userPhotoURL"`
	CreatedAt    time.Time `json:"-"`
	AIHint       string    `json:"aiHint,omitempty"`
}

// imageJSON mirrors Image on the wire. createdAt travels as epoch
// milliseconds, which is what browser clients sort and format on.
type imageJSON struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserPhotoURL string `json:"userPhotoURL"`
	CreatedAt    int64  `json:"createdAt"`
	AIHint       string `json:"aiHint,omitempty"`
}

// MarshalJSON encodes CreatedAt as milliseconds since the Unix epoch.
func (i Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageJSON{
		ID:           i.ID,
		URL:          i.URL,
		UserID:       i.UserID,
		UserName:     i.UserName,
		UserPhotoURL: i.UserPhotoURL,
		CreatedAt:    i.CreatedAt.UnixMilli(),
		AIHint:       i.AIHint,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (i *Image) UnmarshalJSON(b []byte) error {
	var raw imageJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = Image{
		ID:           raw.ID,
		URL:          raw.URL,
		UserID:       raw.UserID,
		UserName:     raw.UserName,
		UserPhotoURL: raw.UserPhotoURL,
		CreatedAt:    time.UnixMilli(raw.CreatedAt).UTC(),
		AIHint:       raw.AIHint,
	}
	return nil
}

// LocalFile is a file the user picked (or dropped) for upload, read fully
// into memory. Uploads are capped at a few megabytes so this is fine.
type LocalFile struct {
	Name         string
	DeclaredType string // Content-Type sent by the client, may be empty
	Size         int64
	Data         []byte
}
