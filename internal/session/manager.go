package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Manager is the in-memory session registry. Every mutation of the map and
// of session records happens under a single mutex; callers only ever see
// copies, so nothing escapes the critical section.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	systemPrompt string
	maxHistory   int
	timeout      time.Duration
	onExpire     func(*Session)
}

func NewManager(systemPrompt string, maxHistory int, timeout time.Duration) *Manager {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		systemPrompt: systemPrompt,
		maxHistory:   maxHistory,
		timeout:      timeout,
	}
}

// SetExpireHook registers a callback invoked (outside the lock) for every
// session removed by expiry, lazily or by the janitor.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create allocates a new session seeded with the pinned system message.
func (m *Manager) Create() *Session {
	now := time.Now().UTC()
	s := &Session{
		ID: uuid.NewString(),
		Messages: []Message{
			{Role: RoleSystem, Content: m.systemPrompt, Timestamp: now},
		},
		CreatedAt:    now,
		LastActivity: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

// Get returns a copy of the session, or ErrNotFound if the id is unknown.
// A session whose last activity is older than the timeout is evicted here
// and reported as not found; callers never observe an expired session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok && m.expired(s, time.Now().UTC()) {
		delete(m.sessions, sessionID)
		expired := clone(s)
		hook := m.onExpire
		m.mu.Unlock()
		if hook != nil {
			hook(expired)
		}
		return nil, ErrNotFound
	}
	defer m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Messages returns a copy of the full ordered log, system message included.
func (m *Manager) Messages(sessionID string) ([]Message, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Messages, nil
}

// Append adds a message, bumps activity and the monotonic counter, then
// applies the sliding-window trim. An unknown or expired id returns
// ErrNotFound without mutating anything.
func (m *Manager) Append(sessionID string, role Role, content string) error {
	now := time.Now().UTC()

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok && m.expired(s, now) {
		delete(m.sessions, sessionID)
		expired := clone(s)
		hook := m.onExpire
		m.mu.Unlock()
		if hook != nil {
			hook(expired)
		}
		return ErrNotFound
	}
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}

	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
	s.LastActivity = now
	s.MessageCount++
	m.trim(s)
	m.mu.Unlock()
	return nil
}

// trim keeps the system message plus the most recent maxHistory entries.
// Caller must hold the lock.
func (m *Manager) trim(s *Session) {
	if len(s.Messages) <= m.maxHistory+1 {
		return
	}
	kept := make([]Message, 0, m.maxHistory+1)
	kept = append(kept, s.Messages[0])
	kept = append(kept, s.Messages[len(s.Messages)-m.maxHistory:]...)
	s.Messages = kept
}

// Delete removes the session and reports whether anything was removed.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

// Stats snapshots aggregate counters across all live sessions.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{ActiveSessions: len(m.sessions)}
	for _, s := range m.sessions {
		st.TotalMessages += s.MessageCount
	}
	if st.ActiveSessions > 0 {
		st.AvgMessagesPerSession = float64(st.TotalMessages) / float64(st.ActiveSessions)
	}
	return st
}

// StartJanitor launches the periodic expiry sweep. The loop stops when ctx
// is cancelled; a single pass never panics the loop.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if !m.expired(s, now) {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastActivity) > m.timeout
}

func clone(s *Session) *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}
