package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/infra/memory"
)

// SessionStore is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Session objects stay in a local in-memory registry; they hold mutexes
//     and timers and cannot be serialized.
//   - Redis carries a liveness marker per live session so operators and other
//     tooling can see which chats and participants are mid-quiz.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	local  *memory.SessionStore
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		local:  memory.NewSessionStore(),
	}
}

func (s *SessionStore) CreateIndividual(session *app.IndividualSession) error {
	if err := s.local.CreateIndividual(session); err != nil {
		return err
	}
	s.mark(app.IndividualKey(session.ParticipantID()))
	return nil
}

func (s *SessionStore) Individual(participantID int64) (*app.IndividualSession, bool) {
	return s.local.Individual(participantID)
}

func (s *SessionStore) EndIndividual(participantID int64, session *app.IndividualSession) bool {
	if !s.local.EndIndividual(participantID, session) {
		return false
	}
	s.clear(app.IndividualKey(participantID))
	return true
}

func (s *SessionStore) CreateGroup(session *app.GroupSession) error {
	if err := s.local.CreateGroup(session); err != nil {
		return err
	}
	s.mark(app.GroupKey(session.ChatID()))
	return nil
}

func (s *SessionStore) Group(chatID int64) (*app.GroupSession, bool) {
	return s.local.Group(chatID)
}

func (s *SessionStore) EndGroup(chatID int64, session *app.GroupSession) bool {
	if !s.local.EndGroup(chatID, session) {
		return false
	}
	s.clear(app.GroupKey(chatID))
	return true
}

// best-effort liveness marker
func (s *SessionStore) mark(key app.SessionKey) {
	_ = s.client.Set(context.Background(), s.key(key), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

// Touch pushes the marker's expiry out by another ttl. Presenting a question
// calls it, so long runs keep their marker.
func (s *SessionStore) Touch(key app.SessionKey) {
	if s.ttl <= 0 {
		return
	}
	_ = s.client.Expire(context.Background(), s.key(key), s.ttl).Err()
}

func (s *SessionStore) clear(key app.SessionKey) {
	_ = s.client.Del(context.Background(), s.key(key)).Err()
}

func (s *SessionStore) key(key app.SessionKey) string {
	return "quiz:session:" + string(key.Kind) + ":" + strconv.FormatInt(key.ID, 10)
}
