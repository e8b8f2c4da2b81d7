package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"deafauth/backend/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends auth events as OTel log
// records via the given LoggerProvider. If provider is nil, returns a no-op
// emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &logEmitter{logger: provider.Logger("deafauth.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }
func (noopEmitter) Close() error                                 { return nil }

type logEmitter struct {
	logger otellog.Logger
}

// Emit converts the auth event to an OTel log record and emits it.
func (e *logEmitter) Emit(ctx context.Context, ev *telemetry.Event) error {
	if ev == nil {
		return nil
	}
	rec := otellog.Record{}
	if !ev.CreatedAt.IsZero() {
		rec.SetTimestamp(ev.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(ev.EventType))
	rec.AddAttributes(otellog.String("session_id", ev.SessionID))
	if ev.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", ev.UserID))
	}
	if ev.StateFrom != "" {
		rec.AddAttributes(otellog.String("state_from", ev.StateFrom))
	}
	rec.AddAttributes(otellog.String("state_to", ev.StateTo))
	if ev.Source != "" {
		rec.AddAttributes(otellog.String("source", ev.Source))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func (e *logEmitter) Close() error { return nil }
