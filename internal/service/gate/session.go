package gate

import (
	"context"
	"sync"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
)

// Session is one client's live view of the gate. Re-evaluated decisions
// arrive on Updates; when the consumer lags, the newest decision wins.
type Session struct {
	user    *domain.User
	updates chan Decision

	closeOnce sync.Once
	closed    chan struct{}
}

// Subscribe registers a session for the user's team and queues an initial
// decision so consumers have a state before the first billing change.
func (s *Service) Subscribe(ctx context.Context, user *domain.User) *Session {
	sess := &Session{
		user:    user,
		updates: make(chan Decision, 1),
		closed:  make(chan struct{}),
	}

	s.mu.Lock()
	teamSessions, ok := s.sessions[user.TeamID]
	if !ok {
		teamSessions = make(map[*Session]struct{})
		s.sessions[user.TeamID] = teamSessions
	}
	teamSessions[sess] = struct{}{}
	s.mu.Unlock()

	sess.push(s.CheckUser(ctx, user))
	return sess
}

// Unsubscribe removes the session. Its Updates channel stops receiving and
// Done is closed.
func (s *Service) Unsubscribe(sess *Session) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	teamSessions := s.sessions[sess.user.TeamID]
	delete(teamSessions, sess)
	if len(teamSessions) == 0 {
		delete(s.sessions, sess.user.TeamID)
	}
	s.mu.Unlock()
	sess.closeOnce.Do(func() { close(sess.closed) })
}

// User returns the identity the session was opened with.
func (sess *Session) User() *domain.User {
	return sess.user
}

// Updates delivers re-evaluated decisions.
func (sess *Session) Updates() <-chan Decision {
	return sess.updates
}

// Done is closed once the session is unsubscribed.
func (sess *Session) Done() <-chan struct{} {
	return sess.closed
}

// push replaces any undelivered decision with the newest one. The channel
// is never closed, so a racing push after Unsubscribe is harmless.
func (sess *Session) push(d Decision) {
	select {
	case <-sess.closed:
		return
	default:
	}
	for {
		select {
		case sess.updates <- d:
			return
		default:
		}
		select {
		case <-sess.updates:
		default:
		}
	}
}
