package memory

import (
	"sync"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRegistry.
type SessionStore struct {
	mu          sync.RWMutex
	individuals map[int64]*app.IndividualSession
	groups      map[int64]*app.GroupSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		individuals: make(map[int64]*app.IndividualSession),
		groups:      make(map[int64]*app.GroupSession),
	}
}

func (s *SessionStore) CreateIndividual(session *app.IndividualSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.individuals[session.ParticipantID()]; ok {
		return domain.ErrSessionExists
	}
	s.individuals[session.ParticipantID()] = session
	return nil
}

func (s *SessionStore) Individual(participantID int64) (*app.IndividualSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.individuals[participantID]
	return session, ok
}

func (s *SessionStore) EndIndividual(participantID int64, session *app.IndividualSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.individuals[participantID]; !ok || current != session {
		return false
	}
	delete(s.individuals, participantID)
	return true
}

func (s *SessionStore) CreateGroup(session *app.GroupSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[session.ChatID()]; ok {
		return domain.ErrSessionExists
	}
	s.groups[session.ChatID()] = session
	return nil
}

func (s *SessionStore) Group(chatID int64) (*app.GroupSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.groups[chatID]
	return session, ok
}

func (s *SessionStore) EndGroup(chatID int64, session *app.GroupSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.groups[chatID]; !ok || current != session {
		return false
	}
	delete(s.groups, chatID)
	return true
}

// Len returns the number of live sessions of both kinds.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.individuals) + len(s.groups)
}
