// Package session holds the authenticated identity and the cached user
// profile for one client session. The identity provider is external: it
// verifies credentials and hands this package a stable uid. A Session is
// created on sign-in and torn down on sign-out; the premium engine and
// the pet registry subscribe to its change notifications to reload.
package session

import (
	"sync"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/models"
)

// User is the authenticated identity as reported by the identity provider
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is the per-client session state. Safe for concurrent reads;
// only sign-in/sign-out and profile updates mutate it.
type Session struct {
	mu        sync.RWMutex
	user      *User
	profile   *models.UserProfile
	listeners []func()
}

// New creates an empty, signed-out session
func New() *Session {
	return &Session{}
}

// OnChange registers a listener invoked after every sign-in and sign-out.
// Listeners run synchronously in registration order.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// SignIn installs the identity and its profile and notifies listeners
func (s *Session) SignIn(user User, profile models.UserProfile) {
	s.mu.Lock()
	s.user = &user
	s.profile = &profile
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// SignOut clears the session and notifies listeners
func (s *Session) SignOut() {
	s.mu.Lock()
	s.user = nil
	s.profile = nil
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// User returns the current identity, or nil when signed out
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Profile returns a copy of the cached profile, or nil when signed out
func (s *Session) Profile() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// SetProfile replaces the cached profile (after a remote reload)
func (s *Session) SetProfile(profile models.UserProfile) {
	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()
}

// SetPremium updates the cached premium fields after a confirmed
// activation write. It never runs before the write succeeds.
func (s *Session) SetPremium(expiry, activatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return
	}
	s.profile.IsPremium = true
	s.profile.PremiumExpiry = &expiry
	s.profile.PremiumActivatedAt = &activatedAt
}
