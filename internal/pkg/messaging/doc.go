// Package messaging publishes and consumes broker messages behind one small
// interface, with NATS, NSQ, Kafka and in-process drivers.
//
// Consumers run until their context is canceled. With auto-ack enabled a
// message is acknowledged when the handler returns nil and negatively
// acknowledged (requeued where the broker supports it) otherwise. Handler
// panics are recovered and treated as errors.
package messaging
