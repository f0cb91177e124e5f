package messaging

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Driver names accepted by NewFromDriver and the messaging.driver config key.
const (
	DriverMemory = "memory"
	DriverNSQ    = "nsq"
	DriverKafka  = "kafka"
	DriverNATS   = "nats"
)

// ErrUnknownDriver is returned for a driver name outside Drivers.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions carries per driver settings. NewFromDriver reads only the
// section of the selected driver.
type FactoryOptions struct {
	NSQ   NSQConfig
	Kafka KafkaConfig
	NATS  NATSConfig
}

// Drivers lists the supported driver names.
func Drivers() []string {
	return []string{DriverMemory, DriverNSQ, DriverKafka, DriverNATS}
}

// NewFromDriver builds the broker client named by driver. Matching ignores
// case and surrounding spaces.
func NewFromDriver(driver string, opts FactoryOptions) (Messaging, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if !slices.Contains(Drivers(), name) {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDriver, driver, strings.Join(Drivers(), ", "))
	}

	if name == DriverMemory {
		return NewMemory(), nil
	}
	if name == DriverNSQ {
		return asMessaging(NewNSQ(opts.NSQ))
	}
	if name == DriverKafka {
		return asMessaging(NewKafka(opts.Kafka))
	}
	return asMessaging(NewNATS(opts.NATS))
}

// asMessaging keeps a failed constructor from leaking a typed nil.
func asMessaging[T Messaging](m T, err error) (Messaging, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}
