package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// QuizCache caches quiz definitions in Redis and falls back to a store on
// cache miss.
// Quizzes are stored as: SET quiz:{quizID} {json}
// Share codes as:        SET quiz:code:{CODE} {quizID}
type QuizCache struct {
	client *redis.Client
	store  app.QuizStore
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizCache(client *redis.Client, store app.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}
	result, err, _ := c.sf.Do("id:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.store.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.fill(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) LoadQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error) {
	code = domain.NormalizeShareCode(code)
	if quizID, err := c.client.Get(ctx, codeKey(code)).Result(); err == nil {
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}
	}
	result, err, _ := c.sf.Do("code:"+code, func() (interface{}, error) {
		quiz, err := c.store.LoadQuizByShareCode(ctx, code)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.fill(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.store.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	c.evict(ctx, quiz.ID)
	return nil
}

func (c *QuizCache) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.Quiz, error) {
	return c.store.ListQuizzes(ctx, ownerID)
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := c.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	c.evict(ctx, quizID)
	return nil
}

func (c *QuizCache) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, quizKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

// fill is best-effort; a failed write only costs a later cache miss.
func (c *QuizCache) fill(ctx context.Context, quiz domain.Quiz) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	ttl := c.ttlWithJitter()
	pipe := c.client.Pipeline()
	pipe.Set(ctx, quizKey(quiz.ID), raw, ttl)
	if quiz.ShareCode != "" {
		pipe.Set(ctx, codeKey(domain.NormalizeShareCode(quiz.ShareCode)), quiz.ID, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (c *QuizCache) evict(ctx context.Context, quizID string) {
	if quiz, ok := c.cached(ctx, quizID); ok && quiz.ShareCode != "" {
		_ = c.client.Del(ctx, codeKey(domain.NormalizeShareCode(quiz.ShareCode))).Err()
	}
	_ = c.client.Del(ctx, quizKey(quizID)).Err()
}

func quizKey(quizID string) string {
	return "quiz:" + quizID
}

func codeKey(code string) string {
	return "quiz:code:" + code
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
