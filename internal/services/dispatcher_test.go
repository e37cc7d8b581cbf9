package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestDispatcher_PerChatOrder(t *testing.T) {
	handler := new(recordingHandler)
	var (
		mu   sync.Mutex
		seen = map[int64][]string{}
	)
	handler.On("Handle", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ev := args.Get(1).(Event)
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen[ev.ChatID] = append(seen[ev.ChatID], ev.Text)
		mu.Unlock()
	})

	d := NewDispatcher(handler, 4)
	ctx := context.Background()
	texts := []string{"a", "b", "c", "d", "e"}
	for _, text := range texts {
		for chat := int64(1); chat <= 3; chat++ {
			d.Handle(ctx, Event{Kind: EventText, ChatID: chat, Text: text})
		}
	}
	d.Wait()

	for chat := int64(1); chat <= 3; chat++ {
		assert.Equal(t, texts, seen[chat], "chat %d", chat)
	}
	handler.AssertNumberOfCalls(t, "Handle", 15)
}

type concurrencyProbe struct {
	inFlight map[int64]*int32
	overlap  int32
	peak     int32
	running  int32
}

func (p *concurrencyProbe) Handle(ctx context.Context, ev Event) {
	if atomic.AddInt32(p.inFlight[ev.ChatID], 1) > 1 {
		atomic.StoreInt32(&p.overlap, 1)
	}
	n := atomic.AddInt32(&p.running, 1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&p.running, -1)
	atomic.AddInt32(p.inFlight[ev.ChatID], -1)
}

func TestDispatcher_Concurrency(t *testing.T) {
	probe := &concurrencyProbe{inFlight: map[int64]*int32{}}
	for chat := int64(0); chat < 8; chat++ {
		probe.inFlight[chat] = new(int32)
	}

	d := NewDispatcher(probe, 2)
	for i := 0; i < 40; i++ {
		d.Handle(context.Background(), Event{ChatID: int64(i % 8)})
	}
	d.Wait()

	assert.Zero(t, atomic.LoadInt32(&probe.overlap), "one event per chat at a time")
	assert.LessOrEqual(t, atomic.LoadInt32(&probe.peak), int32(2))
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	handler := new(recordingHandler)
	handler.On("Handle", mock.Anything, Event{ChatID: 1, Text: "boom"}).Run(func(mock.Arguments) {
		panic("boom")
	}).Once()
	handler.On("Handle", mock.Anything, Event{ChatID: 1, Text: "after"}).Once()

	d := NewDispatcher(handler, 1)
	d.Handle(context.Background(), Event{ChatID: 1, Text: "boom"})
	d.Handle(context.Background(), Event{ChatID: 1, Text: "after"})
	d.Wait()

	handler.AssertExpectations(t)
}
