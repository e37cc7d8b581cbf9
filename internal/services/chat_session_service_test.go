package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestChatSessionService_SetAndGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	css := NewChatSessionService(clock, 30*time.Minute)

	_, ok := css.Get(1)
	assert.False(t, ok)

	css.Set(1, ChatSession{State: StateAwaitingGenerationCount, Prompt: "cat"})
	sess, ok := css.Get(1)
	assert.True(t, ok)
	assert.Equal(t, StateAwaitingGenerationCount, sess.State)
	assert.Equal(t, "cat", sess.Prompt)
	assert.Equal(t, clock.Now(), sess.LastAccessed)

	css.Set(1, ChatSession{State: StateNone})
	_, ok = css.Get(1)
	assert.False(t, ok, "StateNone clears the flow")
	assert.Equal(t, 0, css.Count())
}

func TestChatSessionService_TerminateSession(t *testing.T) {
	css := NewChatSessionService(clockwork.NewFakeClock(), 30*time.Minute)

	t.Run("Successful termination", func(t *testing.T) {
		css.Set(5, ChatSession{State: StateMenu})
		err := css.TerminateSession(5, UserInitiated)
		assert.NoError(t, err)

		_, ok := css.Get(5)
		assert.False(t, ok)
	})

	t.Run("Session not found", func(t *testing.T) {
		err := css.TerminateSession(404, AccessRevoked)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestChatSessionService_CleanupExpiredSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	css := NewChatSessionService(clock, 5*time.Minute)

	css.Set(1, ChatSession{State: StateMenu})
	css.Set(2, ChatSession{State: StateAwaitingVideoUpload})
	clock.Advance(4 * time.Minute)
	css.Get(1)
	clock.Advance(2 * time.Minute)

	dropped := css.CleanupExpiredSessions()
	assert.Equal(t, 1, dropped)

	_, ok := css.Get(1)
	assert.True(t, ok, "recently touched session survives")
	_, ok = css.Get(2)
	assert.False(t, ok, "idle session is dropped")
}

func TestChatSessionService_Run(t *testing.T) {
	clock := clockwork.NewFakeClock()
	css := NewChatSessionService(clock, time.Minute)
	css.Set(1, ChatSession{State: StateMenu})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		css.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return css.Count() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestChatSessionService_ConcurrentAccess(t *testing.T) {
	css := NewChatSessionService(clockwork.NewRealClock(), time.Hour)
	css.Set(1, ChatSession{State: StateMenu})

	numGoroutines := 100
	var wg sync.WaitGroup
	wg.Add(numGoroutines * 3)

	var (
		reads        int32
		terminations int32
	)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if _, ok := css.Get(1); ok {
				atomic.AddInt32(&reads, 1)
			}
		}()

		go func(i int) {
			defer wg.Done()
			css.Set(int64(i+100), ChatSession{State: StateMenu})
		}(i)

		go func() {
			defer wg.Done()
			if err := css.TerminateSession(1, UserInitiated); err == nil {
				atomic.AddInt32(&terminations, 1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), terminations, "exactly one termination wins")
	assert.Equal(t, numGoroutines, css.Count())
	_, ok := css.Get(1)
	assert.False(t, ok)
}
