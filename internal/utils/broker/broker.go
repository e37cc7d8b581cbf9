// Package broker fans outbound chat messages out to the transport
// connections subscribed to a chat.
package broker

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type Broker struct {
	subscribers map[string][]chan interface{}
	buffer      int
	mu          sync.RWMutex
}

func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		subscribers: make(map[string][]chan interface{}),
		buffer:      buffer,
	}
}

// ChatTopic is the topic carrying outbound messages for one chat.
func ChatTopic(chatID int64) string {
	return fmt.Sprintf("chat_%d", chatID)
}

func (b *Broker) Subscribe(topic string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, b.buffer)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans, ok := b.subscribers[topic]
	if !ok {
		return
	}
	for i, c := range chans {
		if c == ch {
			b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Publish delivers msg to every subscriber of topic and returns how many
// received it. A subscriber whose buffer is full misses the message.
func (b *Broker) Publish(topic string, msg interface{}) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
			delivered++
		default:
			log.Warn().Str("topic", topic).Msg("subscriber buffer full, dropping message")
		}
	}
	return delivered
}

// HasSubscribers reports whether anyone listens on topic.
func (b *Broker) HasSubscribers(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic]) > 0
}
