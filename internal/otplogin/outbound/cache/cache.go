// Package cache holds the per user pending challenge. Entries are advisory:
// the usecase re-reads the record store before trusting one.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "otplogin:pending:"

func pendingKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func encode(p entity.PendingChallenge) ([]byte, error) {
	return json.Marshal(p)
}

func decode(b []byte) (*entity.PendingChallenge, error) {
	var p entity.PendingChallenge
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func startSpan(ctx context.Context, ins instrument.Instrumentation, name string) (context.Context, trace.Span) {
	return ins.Tracer("otplogin.outbound.cache").Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
