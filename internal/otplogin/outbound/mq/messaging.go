package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpgate/internal/otplogin/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishOTPDelivery(ctx context.Context, msg usecase.OTPDeliveryEvent) error {
	ctx, span := m.ins.Tracer("otplogin.outbound.mq").Start(ctx, "PublishOTPDelivery")
	defer span.End()

	body, err := json.Marshal(event.OTPDeliveryMessage{
		UserID:    msg.UserID,
		Username:  msg.Username,
		Email:     msg.Email,
		RequestID: msg.RequestID,
		Code:      msg.Code,
		ValidTill: msg.ValidTill,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPDeliveryDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.Username),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
