package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Dispatcher hands events to a handler with at most one event in flight per
// chat, in arrival order, and at most workers chats handled at once.
type Dispatcher struct {
	handler EventHandler
	sem     chan struct{}

	mu     sync.Mutex
	queues map[int64][]Event
	wg     sync.WaitGroup
}

func NewDispatcher(handler EventHandler, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		handler: handler,
		sem:     make(chan struct{}, workers),
		queues:  make(map[int64][]Event),
	}
}

// Handle enqueues ev and returns immediately.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	d.mu.Lock()
	q, draining := d.queues[ev.ChatID]
	d.queues[ev.ChatID] = append(q, ev)
	d.mu.Unlock()

	if !draining {
		d.wg.Add(1)
		go d.drain(ctx, ev.ChatID)
	}
}

// drain processes one chat's queue until it is empty.
func (d *Dispatcher) drain(ctx context.Context, chatID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[chatID]
		if len(q) == 0 || ctx.Err() != nil {
			if len(q) > 0 {
				log.Warn().Int64("chat_id", chatID).Int("dropped", len(q)).Msg("dispatcher stopped with queued events")
			}
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := q[0]
		d.queues[chatID] = q[1:]
		d.mu.Unlock()

		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		d.run(ctx, ev)
		<-d.sem
	}
}

func (d *Dispatcher) run(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("chat_id", ev.ChatID).Msg("event handler panicked")
		}
	}()
	d.handler.Handle(ctx, ev)
}

// Wait blocks until every queued event has been handled or dropped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
