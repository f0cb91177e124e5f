package messaging

import (
	"context"
	"io"
	"sync"
	"time"
)

const memoryBuffer = 64

// Memory is an in-process broker for single binary deployments and tests.
//
// Each consumer group of a topic receives every message once; consumers
// sharing a group split the work. Messages published while a topic has no
// consumer are dropped, and Nack does not redeliver.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan *delivery
	done   chan struct{}
	closed bool
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{
		topics: make(map[string]map[string]chan *delivery),
		done:   make(chan struct{}),
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, errDestinationRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	groups := make([]chan *delivery, 0, len(m.topics[destination]))
	for _, ch := range m.topics[destination] {
		groups = append(groups, ch)
	}
	m.mu.RUnlock()

	now := time.Now()
	for _, ch := range groups {
		d := &delivery{
			body:      append([]byte(nil), msg.Body...),
			key:       msg.Key,
			headers:   append([]Header(nil), msg.Headers...),
			topic:     destination,
			timestamp: now,
		}
		select {
		case ch <- d:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-m.done:
			return PublishResult{}, io.ErrClosedPipe
		}
	}

	return PublishResult{Topic: destination, Timestamp: now}, nil
}

// Consume returns nil once ctx is canceled or the broker is closed.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, source, handler); err != nil {
		return err
	}

	co := newConsumeOptions(opts...)
	ch, err := m.subscribe(source, co.groupOrDefault())
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-m.done:
					return
				case d := <-ch:
					//nolint:errcheck // handler errors are logged by the handler
					_ = dispatch(ctx, DriverMemory, handler, d, co.autoAck)
				}
			}
		})
	}
	wg.Wait()

	return nil
}

func (m *Memory) subscribe(topic, group string) (chan *delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[string]chan *delivery)
	}
	ch, ok := m.topics[topic][group]
	if !ok {
		ch = make(chan *delivery, memoryBuffer)
		m.topics[topic][group] = ch
	}
	return ch, nil
}
