package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionCookieName = "session_id"
	sessionLifetime   = 7 * 24 * time.Hour
)

type Session struct {
	UserID    int64
	ExpiresAt time.Time
}

// SessionManager keeps sessions in memory. Game state itself never lives
// here; losing sessions on restart only forces a re-login.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*Session),
	}

	go sm.cleanupExpiredSessions()

	return sm
}

func (sm *SessionManager) CreateSession(userID int64) string {
	sessionID := uuid.NewString()

	sm.mu.Lock()
	sm.sessions[sessionID] = &Session{
		UserID:    userID,
		ExpiresAt: time.Now().Add(sessionLifetime),
	}
	sm.mu.Unlock()

	return sessionID
}

func (sm *SessionManager) GetUserID(sessionID string) (int64, bool) {
	sm.mu.RLock()
	session, exists := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if !exists {
		return 0, false
	}

	if time.Now().After(session.ExpiresAt) {
		sm.DeleteSession(sessionID)
		return 0, false
	}

	return session.UserID, true
}

func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()
}

func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Enable in production with HTTPS
	}
	http.SetCookie(w, cookie)
}

func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	http.SetCookie(w, cookie)
}

func GetSessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (sm *SessionManager) cleanupExpiredSessions() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		sm.mu.Lock()
		now := time.Now()
		for id, session := range sm.sessions {
			if now.After(session.ExpiresAt) {
				delete(sm.sessions, id)
			}
		}
		sm.mu.Unlock()
	}
}
