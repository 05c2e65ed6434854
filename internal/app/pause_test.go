package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPausesNeverFireAfterClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		s := NewQuizService(nil, nil, nil, nil, DefaultOptions())
		var (
			ran atomic.Int32
			wg  sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.after(time.Millisecond, func() { ran.Add(1) })
			}()
		}
		s.Close()
		atClose := ran.Load()
		wg.Wait()
		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, atClose, ran.Load(), "round %d", round)
	}
}

func TestZeroPauseRunsInline(t *testing.T) {
	s := NewQuizService(nil, nil, nil, nil, DefaultOptions())
	defer s.Close()
	ran := false
	s.after(0, func() { ran = true })
	assert.True(t, ran)
}

func TestTicksForRoundsUp(t *testing.T) {
	s := NewQuizService(nil, nil, nil, nil, Options{TickInterval: time.Second})
	defer s.Close()
	assert.Equal(t, 0, s.ticksFor(0))
	assert.Equal(t, 1, s.ticksFor(200*time.Millisecond))
	assert.Equal(t, 3, s.ticksFor(3*time.Second))
	assert.Equal(t, 4, s.ticksFor(3100*time.Millisecond))
}
