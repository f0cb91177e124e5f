package messaging

const defaultGroup = "default"

type consumeOptions struct {
	// group names the durable subscriber: the Kafka consumer group, the NSQ
	// channel or the NATS queue group. Members of one group share the stream.
	group       string
	concurrency int
	maxInFlight int
	autoAck     bool
}

// ConsumeOption tunes a single Consume call.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	var co consumeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	co.concurrency = max(co.concurrency, 1)
	co.maxInFlight = max(co.maxInFlight, co.concurrency)
	return co
}

// groupOrDefault is used by drivers where a group is optional.
func (co consumeOptions) groupOrDefault() string {
	if co.group == "" {
		return defaultGroup
	}
	return co.group
}

// WithGroup names the subscriber group. Kafka and NSQ require it.
func WithGroup(name string) ConsumeOption {
	return func(o *consumeOptions) { o.group = name }
}

// WithConcurrency is the number of handler goroutines. Values below one mean one.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithMaxInFlight caps unacknowledged NSQ messages. It never drops below the
// concurrency.
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}

// WithAutoAck acks when the handler returns nil and nacks otherwise, unless
// the handler already responded.
func WithAutoAck(on bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = on }
}
