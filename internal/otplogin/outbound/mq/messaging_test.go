package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otplogin/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

func TestMessaging_PublishOTPDelivery(t *testing.T) {
	broker := messaging.NewMemory()
	t.Cleanup(func() { _ = broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan messaging.Message, 1)
	go func() {
		_ = broker.Consume(ctx, event.OTPDeliveryDestination, func(_ context.Context, msg messaging.Message) error {
			got <- msg
			return nil
		}, messaging.WithGroup(event.OTPDeliveryDestinationConsumerNotification))
	}()

	pub := NewMessaging(broker, instrument.NewNoop())
	validTill := time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)

	// retry until the consumer group exists; the memory broker drops messages without one
	require.Eventually(t, func() bool {
		if err := pub.PublishOTPDelivery(instrument.SetCorrelationID(ctx, "cid-1"), usecase.OTPDeliveryEvent{
			UserID:    1,
			Username:  "alice",
			Email:     "alice@example.com",
			RequestID: "req-1",
			Code:      "123456",
			ValidTill: validTill,
		}); err != nil {
			return false
		}
		select {
		case msg := <-got:
			got <- msg
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	msg := <-got
	assert.Equal(t, "cid-1", msg.Header(keyOfCorrelationID))
	assert.Equal(t, "alice", string(msg.Key()))

	var body event.OTPDeliveryMessage
	require.NoError(t, json.Unmarshal(msg.Body(), &body))
	assert.Equal(t, event.OTPDeliveryMessage{
		UserID:    1,
		Username:  "alice",
		Email:     "alice@example.com",
		RequestID: "req-1",
		Code:      "123456",
		ValidTill: validTill,
	}, body)
}
