package usecase

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"io"
	texttemplate "text/template"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Usecase struct {
	repoMail  repoMail
	cfg       config.Config
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation

	otpText *texttemplate.Template
	otpHTML *htmltemplate.Template
}

type Dependency struct {
	RepoMail   repoMail
	Config     config.Config
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	return &Usecase{
		repoMail:  dep.RepoMail,
		cfg:       dep.Config,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       dep.Instrument,
		otpText:   texttemplate.Must(texttemplate.New("otp_text").Option("missingkey=zero").Parse(otpMailText)),
		otpHTML:   htmltemplate.Must(htmltemplate.New("otp_html").Option("missingkey=zero").Parse(otpMailHTML)),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

// template is satisfied by both text/template and html/template.
type template interface {
	Execute(wr io.Writer, data any) error
}

func render(tpl template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Usecase) baseTemplateData() map[string]any {
	name := s.cfg.GetString("app.name")
	if name == "" {
		name = "otpgate"
	}

	return map[string]any{
		"app_name":      name,
		"support_email": s.cfg.GetString("modules.notification.support_email"),
		"year":          s.clock.Now().Format("2006"),
	}
}
