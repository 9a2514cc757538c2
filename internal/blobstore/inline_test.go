package blobstore

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline_PutAndURL(t *testing.T) {
	data := []byte("\x89PNG\r\n\x1a\nrest")
	called := false

	h, err := Inline{}.Put(context.Background(), "images/u1/1_a.png", bytes.NewReader(data), int64(len(data)), "image/png",
		func(int64, int64) { called = true })
	require.NoError(t, err)
	assert.False(t, called, "inline transport never reports progress")
	assert.Equal(t, int64(len(data)), h.Size)

	url, err := Inline{}.DownloadURL(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestInline_ShortRead(t *testing.T) {
	_, err := Inline{}.Put(context.Background(), "p", strings.NewReader("abc"), 10, "image/png", nil)
	assert.Error(t, err)
}

func TestInline_ForeignHandle(t *testing.T) {
	_, err := Inline{}.DownloadURL(context.Background(), Handle{Path: "images/x"})
	assert.Error(t, err)
}
