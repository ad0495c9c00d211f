package preview

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"clipforge-backend/internal/models"
)

// Manager owns at most one live edit session per video. Reopening a
// video's session reloads from persisted state and drops staged edits.
type Manager struct {
	prober DurationProber
	store  ObjectStore

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(prober DurationProber, store ObjectStore) *Manager {
	return &Manager{
		prober:   prober,
		store:    store,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open creates a fresh session for the video, replacing (and tearing
// down) any existing one. The initial duration probe runs synchronously
// so the caller gets a usable totalFrames; a probe failure is tolerated
// and leaves the session at zero frames until a later refresh succeeds.
func (m *Manager) Open(ctx context.Context, video *models.Video) *Session {
	session := NewSession(video, m.prober, m.store)
	_ = session.RefreshDuration(ctx)

	m.mu.Lock()
	prev := m.sessions[video.ID]
	m.sessions[video.ID] = session
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return session
}

func (m *Manager) Get(videoID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[videoID]
	return session, ok
}

// Close tears down and forgets the video's session.
func (m *Manager) Close(videoID uuid.UUID) {
	m.mu.Lock()
	session := m.sessions[videoID]
	delete(m.sessions, videoID)
	m.mu.Unlock()

	if session != nil {
		session.Close()
	}
}
