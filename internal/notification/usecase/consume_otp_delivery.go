package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

const otpMailSubject = "Your login code"

const otpMailText = `Hi {{.username}},

Your {{.app_name}} login code is {{.code}}.
It expires in {{.minutes}} minute(s).

If you did not try to sign in, you can ignore this email.
`

const otpMailHTML = `<!doctype html>
<html>
<body style="font-family: sans-serif">
<p>Hi {{.username}},</p>
<p>Your {{.app_name}} login code is</p>
<p style="font-size: 28px; letter-spacing: 6px"><strong>{{.code}}</strong></p>
<p>It expires in {{.minutes}} minute(s).</p>
<p style="color: #888">If you did not try to sign in, you can ignore this email.{{if .support_email}} Questions? {{.support_email}}{{end}}</p>
<p style="color: #888">&copy; {{.year}} {{.app_name}}</p>
</body>
</html>
`

func (s *Usecase) subject() string {
	if v := s.cfg.GetString("modules.notification.email_subject"); v != "" {
		return v
	}
	return otpMailSubject
}

type ConsumeOTPDeliveryInput struct {
	UserID    int64     `validate:"required,gt=0"`
	Username  string    `validate:"required"`
	Email     string    `validate:"required,email"`
	RequestID string    `validate:"required"`
	Code      string    `validate:"required,otp"`
	ValidTill time.Time `validate:"required"`
}

// ConsumeOTPDelivery mails a login code. Invalid or already expired
// deliveries are dropped; only a failed send is returned so the broker can
// redeliver.
func (s *Usecase) ConsumeOTPDelivery(ctx context.Context, in ConsumeOTPDeliveryInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeOTPDelivery")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "request_id", in.RequestID, "error", err)
		return nil
	}

	left := in.ValidTill.Sub(s.clock.Now())
	if left <= 0 {
		slog.WarnContext(ctx, "otp delivery arrived after expiry", "request_id", in.RequestID, "valid_till", in.ValidTill)
		return nil
	}

	data := s.baseTemplateData()
	data["username"] = in.Username
	data["code"] = in.Code
	data["minutes"] = int(math.Ceil(left.Minutes()))

	text, err := render(s.otpText, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp mail text", "request_id", in.RequestID, "error", err)
		return nil
	}

	html, err := render(s.otpHTML, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp mail html", "request_id", in.RequestID, "error", err)
		return nil
	}

	if err := s.repoMail.Send(ctx, mail.Message{
		To:       []string{in.Email},
		Subject:  s.subject(),
		TextBody: text,
		HTMLBody: html,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to send otp mail", "user_id", in.UserID, "request_id", in.RequestID, "error", err)
		return err
	}

	slog.InfoContext(ctx, "otp mail sent", "user_id", in.UserID, "request_id", in.RequestID)
	return nil
}
