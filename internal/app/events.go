package app

import (
	"fmt"
	"sync"

	"quiz-session-service/internal/domain"
)

// SessionKind separates the individual and group registries.
type SessionKind string

const (
	KindIndividual SessionKind = "individual"
	KindGroup      SessionKind = "group"
)

// SessionKey addresses one live session.
type SessionKey struct {
	Kind SessionKind
	ID   int64
}

func IndividualKey(participantID int64) SessionKey {
	return SessionKey{Kind: KindIndividual, ID: participantID}
}

func GroupKey(chatID int64) SessionKey {
	return SessionKey{Kind: KindGroup, ID: chatID}
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// EventKind names what a session Event carries.
type EventKind string

const (
	EventQuestion       EventKind = "question"
	EventTick           EventKind = "tick"
	EventFeedback       EventKind = "feedback"
	EventTimeout        EventKind = "timeout"
	EventAnswerAccepted EventKind = "answer_accepted"
	EventReveal         EventKind = "reveal"
	EventModePrompt     EventKind = "mode_prompt"
	EventInputPrompt    EventKind = "input_prompt"
	EventStarting       EventKind = "starting"
	EventFinished       EventKind = "finished"
)

// Prompt asks the group owner for run settings.
type Prompt struct {
	Mode     domain.SelectionMode `json:"mode,omitempty"`
	Total    int                  `json:"total"`
	MaxCount int                  `json:"maxCount,omitempty"`
	Problem  string               `json:"problem,omitempty"`
}

// Event is pushed to presentation subscribers of a session.
type Event struct {
	Kind        EventKind                 `json:"kind"`
	Session     string                    `json:"session"`
	Question    *QuestionView             `json:"question,omitempty"`
	Remaining   int                       `json:"remaining,omitempty"`
	Answered    int                       `json:"answered,omitempty"`
	Outcome     *AnswerOutcome            `json:"outcome,omitempty"`
	Reveal      *Reveal                   `json:"reveal,omitempty"`
	Prompt      *Prompt                   `json:"prompt,omitempty"`
	StartsIn    int                       `json:"startsIn,omitempty"`
	Result      *domain.Result            `json:"result,omitempty"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
	Stopped     bool                      `json:"stopped,omitempty"`
}

// EventBus fans session events out to subscribers. A subscriber that falls
// behind loses its oldest pending event rather than blocking publishers.
type EventBus struct {
	buffer int

	mu   sync.Mutex
	subs map[SessionKey]map[chan Event]struct{}
}

func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 16
	}
	return &EventBus{buffer: buffer, subs: make(map[SessionKey]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for key. The caller must invoke the
// returned cancel function to avoid leaks.
func (b *EventBus) Subscribe(key SessionKey) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan Event]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		set, ok := b.subs[key]
		if !ok {
			return
		}
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(b.subs, key)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of key.
func (b *EventBus) Publish(key SessionKey, ev Event) {
	ev.Session = key.String()

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[key] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
