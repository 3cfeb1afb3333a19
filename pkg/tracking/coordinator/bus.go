package coordinator

import (
	"context"
	"sync"
)

// Bus is a same-origin broadcast channel: every subscriber of a channel
// receives every published message, including the publisher's own
// subscription. Senders filter out their own messages by sender id.
// Delivery to a single subscriber is in order; there is no ordering
// guarantee across subscribers.
type Bus interface {
	Publish(ctx context.Context, channel string, message Message) error
	// Subscribe registers a handler for the channel and returns an
	// unsubscribe function. After unsubscribe returns no further
	// handler invocations occur.
	Subscribe(ctx context.Context, channel string, handler func(Message)) (func(), error)
}

// MemoryBus is the in-process Bus, for single process deployments and
// tests. Each subscriber drains its own buffered mailbox so slow
// handlers do not block publishers.
type MemoryBus struct {
	mutex       sync.Mutex
	subscribers map[string]map[int]*memorySubscriber
	nextID      int
}

type memorySubscriber struct {
	mailbox chan Message
	done    chan struct{}
	drained sync.WaitGroup
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subscribers: map[string]map[int]*memorySubscriber{},
	}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, message Message) error {
	b.mutex.Lock()
	var mailboxes []*memorySubscriber
	for _, subscriber := range b.subscribers[channel] {
		mailboxes = append(mailboxes, subscriber)
	}
	b.mutex.Unlock()

	for _, subscriber := range mailboxes {
		select {
		case subscriber.mailbox <- message:
		case <-subscriber.done:
		}
	}

	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler func(Message)) (func(), error) {
	subscriber := &memorySubscriber{
		mailbox: make(chan Message, 64),
		done:    make(chan struct{}),
	}

	b.mutex.Lock()
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = map[int]*memorySubscriber{}
	}
	id := b.nextID
	b.nextID += 1
	b.subscribers[channel][id] = subscriber
	b.mutex.Unlock()

	subscriber.drained.Add(1)
	go func() {
		defer subscriber.drained.Done()

		for {
			select {
			case <-subscriber.done:
				return
			case message := <-subscriber.mailbox:
				handler(message)
			}
		}
	}()

	unsubscribe := func() {
		b.mutex.Lock()
		if _, present := b.subscribers[channel][id]; present {
			delete(b.subscribers[channel], id)
			close(subscriber.done)
		}
		b.mutex.Unlock()

		subscriber.drained.Wait()
	}

	return unsubscribe, nil
}
