package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
	"github.com/Dhrumilshah777/imageDrop/internal/upload"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// MaxStateWait caps the ?wait= long-poll on GET /api/uploads. It stays
// under the server's write timeout.
const MaxStateWait = 25 * time.Second

// UploadHandler exposes the signed-in user's upload session. Drag and drop
// and the file picker both post to HandleSelect.
type UploadHandler struct {
	sessions   *upload.Manager
	identities IdentityResolver
	maxBytes   int64
	logger     *slog.Logger
}

// NewUploadHandler creates an UploadHandler. maxBytes is the file size
// limit; larger request bodies are cut off before they are buffered.
func NewUploadHandler(sessions *upload.Manager, identities IdentityResolver, maxBytes int64, logger *slog.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxFileSize
	}
	return &UploadHandler{
		sessions:   sessions,
		identities: identities,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

func (h *UploadHandler) session(r *http.Request) (*upload.Session, error) {
	id, err := currentIdentity(r, h.identities)
	if err != nil {
		return nil, err
	}
	return h.sessions.Session(id), nil
}

// readFile pulls the "file" part out of a multipart request.
func (h *UploadHandler) readFile(w http.ResponseWriter, r *http.Request) (model.LocalFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	f, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.LocalFile{}, upload.ErrTooLarge(h.maxBytes)
		}
		return model.LocalFile{}, apperror.ValidationFailed("file", "could not read file").
			WithTitle("Could not read file")
	}
	defer f.Close()

	if header.Size > h.maxBytes {
		return model.LocalFile{}, upload.ErrTooLarge(h.maxBytes)
	}

	// One byte past the limit is enough to reject the file.
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return model.LocalFile{}, apperror.ValidationFailed("file", "could not read file").
			WithTitle("Could not read file")
	}
	if int64(len(data)) > h.maxBytes {
		return model.LocalFile{}, upload.ErrTooLarge(h.maxBytes)
	}
	return model.LocalFile{
		Name:         header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Size:         header.Size,
		Data:         data,
	}, nil
}

// HandleSelect makes the posted file the session's selection.
//
// HTTP: POST /api/uploads (multipart, field "file")
func (h *UploadHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	file, err := h.readFile(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if err := s.Select(file); err != nil {
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// HandleState returns the session state. With ?wait=<duration> (for
// example "wait=20s") it holds the request until the state next changes,
// the wait runs out, or the client goes away, and then answers with the
// state at that point. Clients use it to follow progress without polling.
//
// HTTP: GET /api/uploads[?wait=20s]
func (h *UploadHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			writeError(w, apperror.ValidationFailed("wait", "wait must be a duration such as 20s"))
			return
		}
		waitForChange(r, s, min(wait, MaxStateWait))
	}
	writeJSON(w, http.StatusOK, s.State())
}

// waitForChange blocks until s changes, wait elapses, or r is cancelled.
func waitForChange(r *http.Request, s *upload.Session, wait time.Duration) {
	changed := make(chan struct{}, 1)
	remove := s.OnChange(func(upload.State) {
		// Runs under the session lock: never block.
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-r.Context().Done():
	}
}

// HandleStart begins uploading the selection. The upload continues after
// the response; clients poll HandleState for progress and the outcome.
//
// HTTP: POST /api/uploads/start
func (h *UploadHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	if err := s.Start(r.Context()); err != nil {
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.State())
}

// HandleClear drops the selection.
//
// HTTP: DELETE /api/uploads
func (h *UploadHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	s.Clear()
	writeJSON(w, http.StatusOK, s.State())
}
