package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// QuizCache caches quizzes in front of an app.QuizStore with a TTL to avoid
// repeated DB hits when sessions start. Writes go straight to the store and
// invalidate the cached copy.
type QuizCache struct {
	store app.QuizStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu     sync.RWMutex
	byID   map[string]cachedQuiz
	byCode map[string]string
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(store app.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		store:  store,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		byID:   make(map[string]cachedQuiz),
		byCode: make(map[string]string),
	}
}

func (c *QuizCache) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}
	return c.load("id:"+quizID, func() (domain.Quiz, error) {
		return c.store.LoadQuiz(ctx, quizID)
	})
}

func (c *QuizCache) LoadQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error) {
	code = domain.NormalizeShareCode(code)
	c.mu.RLock()
	quizID, ok := c.byCode[code]
	c.mu.RUnlock()
	if ok {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
	}
	return c.load("code:"+code, func() (domain.Quiz, error) {
		return c.store.LoadQuizByShareCode(ctx, code)
	})
}

func (c *QuizCache) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.store.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	c.invalidate(quiz.ID)
	return nil
}

func (c *QuizCache) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.Quiz, error) {
	return c.store.ListQuizzes(ctx, ownerID)
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := c.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	c.invalidate(quizID)
	return nil
}

func (c *QuizCache) lookup(quizID string) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byID[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (c *QuizCache) load(key string, fetch func() (domain.Quiz, error)) (domain.Quiz, error) {
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		quiz, err := fetch()
		if err != nil {
			return domain.Quiz{}, err
		}
		c.mu.Lock()
		c.byID[quiz.ID] = cachedQuiz{quiz: quiz, expiresAt: c.clock().Add(c.ttlWithJitter())}
		if quiz.ShareCode != "" {
			c.byCode[quiz.ShareCode] = quiz.ID
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) invalidate(quizID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.byID[quizID]; ok {
		delete(c.byCode, entry.quiz.ShareCode)
	}
	delete(c.byID, quizID)
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
