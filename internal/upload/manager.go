package upload

import (
	"log/slog"
	"sync"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
)

// Manager keeps one Session per signed-in user.
type Manager struct {
	uploader Uploader
	previews *preview.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty Manager.
func NewManager(uploader Uploader, previews *preview.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		uploader: uploader,
		previews: previews,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for identity, creating it on first use. The
// session's identity is refreshed so profile changes apply to the next
// upload.
func (m *Manager) Session(identity model.Identity) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[identity.UID]; ok {
		s.SetIdentity(identity)
		return s
	}
	s := NewSession(identity, m.uploader, m.previews, m.logger.With(slog.String("user_id", identity.UID)))
	m.sessions[identity.UID] = s
	return s
}

// Release drops uid's session and its preview.
func (m *Manager) Release(uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()

	if ok {
		s.Release()
	}
}

// Close releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Release()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
