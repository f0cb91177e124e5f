package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cid := msg.Header(keyOfCorrelationID); cid != "" {
		return instrument.SetCorrelationID(ctx, cid)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) OTPDeliveryNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPDeliveryNotification")
	defer span.End()

	body := msg.Body()

	var payload event.OTPDeliveryMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		// the body carries a live code; never log it
		slog.ErrorContext(ctx, "failed to parse message body of otp delivery", "topic", msg.Topic(), "error", err)
		return nil
	}
	slog.InfoContext(ctx, "consume: otp delivery", "user_id", payload.UserID, "request_id", payload.RequestID)

	if err := h.uc.ConsumeOTPDelivery(ctx, usecase.ConsumeOTPDeliveryInput{
		UserID:    payload.UserID,
		Username:  payload.Username,
		Email:     payload.Email,
		RequestID: payload.RequestID,
		Code:      payload.Code,
		ValidTill: payload.ValidTill,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume otp delivery", "request_id", payload.RequestID, "error", err)
		return err
	}

	return nil
}
