package messaging

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// ErrUnsupported is returned when the selected broker lacks a feature.
var ErrUnsupported = errors.New("messaging: unsupported operation")

var (
	errDestinationRequired = errors.New("messaging: destination is required")
	errHandlerRequired     = errors.New("messaging: handler is required")
)

// Messaging can publish and consume.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

// Publisher publishes messages to a topic or subject.
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer consumes messages from a topic or subject until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one message.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish.
type OutgoingMessage struct {
	Body []byte
	// Key is used by Kafka for partitioning.
	Key     []byte
	Headers []Header
	// Delay requests deferred delivery where supported (NSQ).
	Delay time.Duration
}

// Header is a message header.
type Header struct {
	Key   string
	Value []byte
}

// PublishResult carries what the broker reported about a publish.
type PublishResult struct {
	Topic     string
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	// Header returns the first value of the named header, or "".
	Header(key string) string
	Topic() string
	Timestamp() time.Time
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// delivery is the Message implementation shared by all drivers. ack and nack
// run at most once in total.
type delivery struct {
	body      []byte
	key       []byte
	headers   []Header
	topic     string
	timestamp time.Time

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error

	responded atomic.Bool
}

func (d *delivery) Body() []byte         { return d.body }
func (d *delivery) Key() []byte          { return d.key }
func (d *delivery) Headers() []Header    { return d.headers }
func (d *delivery) Topic() string        { return d.topic }
func (d *delivery) Timestamp() time.Time { return d.timestamp }

func (d *delivery) Header(key string) string {
	for _, h := range d.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (d *delivery) Ack(ctx context.Context) error {
	return d.respond(ctx, d.ack)
}

func (d *delivery) Nack(ctx context.Context) error {
	return d.respond(ctx, d.nack)
}

func (d *delivery) respond(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.responded.Swap(true) || fn == nil {
		return nil
	}
	return fn(ctx)
}

// dispatch runs handler for d and applies auto-ack when requested. A handler
// error is always returned, joined with a failed nack.
func dispatch(ctx context.Context, kind string, handler Handler, d *delivery, autoAck bool) error {
	herr := callHandlerWithRecover(ctx, kind, func() error {
		return handler(ctx, d)
	})

	if !autoAck || d.responded.Load() {
		return herr
	}
	if herr == nil {
		return d.Ack(ctx)
	}
	if nerr := d.Nack(ctx); nerr != nil {
		return errors.Join(herr, nerr)
	}
	return herr
}

func validateConsume(ctx context.Context, source string, handler Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return errDestinationRequired
	}
	if handler == nil {
		return errHandlerRequired
	}
	return nil
}
