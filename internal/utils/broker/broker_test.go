package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker(2)
	topic := ChatTopic(42)
	assert.Equal(t, "chat_42", topic)

	ch := b.Subscribe(topic)
	assert.True(t, b.HasSubscribers(topic))

	assert.Equal(t, 1, b.Publish(topic, "hello"))
	assert.Equal(t, "hello", <-ch)

	assert.Equal(t, 0, b.Publish(ChatTopic(7), "nobody"))
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker(1)
	topic := ChatTopic(1)
	ch := b.Subscribe(topic)

	assert.Equal(t, 1, b.Publish(topic, "first"))
	assert.Equal(t, 0, b.Publish(topic, "second"))
	assert.Equal(t, "first", <-ch)
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(1)
	topic := ChatTopic(3)
	ch := b.Subscribe(topic)

	b.Unsubscribe(topic, ch)

	_, open := <-ch
	assert.False(t, open)
	assert.False(t, b.HasSubscribers(topic))
}
