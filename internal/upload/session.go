package upload

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/blobstore"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
)

// Notice kinds.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notice is the last user-visible notification.
type Notice struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Progress is either a percentage in [0,100] or indeterminate, for
// transports that cannot measure progress.
type Progress struct {
	Percent       float64 `json:"percent"`
	Indeterminate bool    `json:"indeterminate"`
}

// State is a copy of a session's state.
type State struct {
	FileName    string    `json:"fileName,omitempty"`
	FileSize    int64     `json:"fileSize,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	PreviewURL  string    `json:"previewURL,omitempty"`
	Progress    *Progress `json:"progress,omitempty"`
	Busy        bool      `json:"busy"`
	Notice      *Notice   `json:"notice,omitempty"`
}

// Uploader runs one upload. *Orchestrator implements it.
type Uploader interface {
	Upload(ctx context.Context, identity *model.Identity, file model.LocalFile, progress blobstore.ProgressFunc) (model.Image, error)
	MaxFileSize() int64
}

// Session is the upload state of one uploader: at most one selected file
// and at most one upload in flight.
//
// Each selection gets a generation number. An upload remembers the
// generation it started with, and when it finishes it only resets the
// session if that generation is still current. That way an upload that
// outlives a Clear cannot wipe a newer selection.
//
// THE STATES:
//
//	empty     → Select        → selected (preview allocated)
//	selected  → Select        → selected (old preview revoked, new one made)
//	selected  → Clear         → empty
//	selected  → Start/Upload  → busy (indeterminate progress)
//	busy      → progress      → busy (percent, when the transport reports it)
//	busy      → finish        → empty + success or error notice
//	busy      → Select        → rejected with a Conflict
//
// Every way out of busy revokes the preview the upload started with, so
// no path leaks one. Release is Clear plus dropping every listener; the
// Manager calls it when the user signs out.
//
// LOCKING:
// One mutex guards everything. Listeners run with it held, which keeps
// the order they see states in the same as the order the states happened.
// The cost is that a listener must not block or call back into the
// session.
type Session struct {
	uploader Uploader
	previews *preview.Registry
	logger   *slog.Logger

	mu        sync.Mutex
	identity  model.Identity
	file      *model.LocalFile
	token     string // preview token of the current selection
	gen       uint64
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewSession returns an empty session for identity.
func NewSession(identity model.Identity, uploader Uploader, previews *preview.Registry, logger *slog.Logger) *Session {
	return &Session{
		identity: identity,
		uploader: uploader,
		previews: previews,
		logger:   logger,
	}
}

// SetIdentity replaces the identity used for uploads started later.
func (s *Session) SetIdentity(identity model.Identity) {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

func (s *Session) copyState() State {
	st := s.state
	if st.Progress != nil {
		p := *st.Progress
		st.Progress = &p
	}
	if st.Notice != nil {
		n := *st.Notice
		st.Notice = &n
	}
	return st
}

// OnChange registers fn to receive every state change. fn runs with the
// session locked and must not call back into the session. The returned
// function removes fn; calling it again, or after Release, is a no-op.
func (s *Session) OnChange(fn func(State)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[int]func(State))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// changed must be called with s.mu held.
func (s *Session) changed() {
	st := s.copyState()
	for _, fn := range s.listeners {
		fn(st)
	}
}

func errConflictBusy() error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Title:   "Upload in progress",
		Message: "wait for the current upload to finish",
	}
}

// Select makes file the current selection. A file that fails validation
// is rejected with a notice and the previous selection stays as it was.
func (s *Session) Select(file model.LocalFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy {
		return errConflictBusy()
	}

	contentType, err := Validate(file, s.uploader.MaxFileSize())
	if err != nil {
		s.state.Notice = errorNotice(err)
		s.changed()
		return err
	}

	s.previews.Revoke(s.token)
	s.gen++
	s.file = &file
	s.token = s.previews.Create(s.identity.UID, file.Name, file.Data)
	s.state = State{
		FileName:    file.Name,
		FileSize:    int64(len(file.Data)),
		ContentType: contentType,
		PreviewURL:  preview.URL(s.token),
	}
	s.changed()
	return nil
}

// Clear drops the selection and its preview. It is allowed while an upload
// is running; that upload is not cancelled but will no longer touch the
// session when it completes.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previews.Revoke(s.token)
	s.gen++
	s.file = nil
	s.token = ""
	s.state = State{}
	s.changed()
}

// Release clears the session and detaches every listener.
func (s *Session) Release() {
	s.Clear()
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}

type job struct {
	gen      uint64
	token    string
	file     model.LocalFile
	identity model.Identity
}

func (s *Session) begin() (job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy {
		return job{}, errConflictBusy()
	}
	if s.file == nil {
		return job{}, apperror.ValidationFailed("file", "select an image first").
			WithTitle("No file selected")
	}

	s.state.Busy = true
	s.state.Progress = &Progress{Indeterminate: true}
	s.state.Notice = nil
	s.changed()

	return job{gen: s.gen, token: s.token, file: *s.file, identity: s.identity}, nil
}

// Start begins uploading the current selection in the background and
// returns once the session is busy. The upload outlives ctx's cancellation
// but keeps its values.
func (s *Session) Start(ctx context.Context) error {
	j, err := s.begin()
	if err != nil {
		return err
	}
	go s.run(context.WithoutCancel(ctx), j)
	return nil
}

// Upload uploads the current selection and waits for the result.
func (s *Session) Upload(ctx context.Context) (model.Image, error) {
	j, err := s.begin()
	if err != nil {
		return model.Image{}, err
	}
	return s.run(ctx, j)
}

func (s *Session) run(ctx context.Context, j job) (model.Image, error) {
	img, err := s.uploader.Upload(ctx, &j.identity, j.file, func(transferred, total int64) {
		s.progress(j.gen, transferred, total)
	})
	s.finish(j, err)
	return img, err
}

func (s *Session) progress(gen uint64, transferred, total int64) {
	if total <= 0 {
		return
	}
	pct := float64(transferred) * 100 / float64(total)
	pct = min(max(pct, 0), 100)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.state.Busy {
		return
	}
	s.state.Progress = &Progress{Percent: pct}
	s.changed()
}

// finish runs on every exit path of an upload.
func (s *Session) finish(j job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previews.Revoke(j.token)

	notice := &Notice{
		Kind:    NoticeSuccess,
		Title:   "Upload successful!",
		Message: "Your image has been added to the gallery.",
	}
	if err != nil {
		notice = errorNotice(err)
		s.logger.Info("upload did not complete",
			slog.String("user_id", j.identity.UID),
			slog.String("file", j.file.Name),
			slog.String("error", err.Error()),
		)
	}

	if j.gen == s.gen {
		s.file = nil
		s.token = ""
		s.state = State{}
	}
	s.state.Notice = notice
	s.changed()
}

func errorNotice(err error) *Notice {
	return &Notice{
		Kind:    NoticeError,
		Title:   apperror.Title(err),
		Message: err.Error(),
	}
}
