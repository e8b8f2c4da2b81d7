package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters recorded by the auth flow. A nil *Metrics is
// safe to use and records nothing.
type Metrics struct {
	transitions   metric.Int64Counter
	verifications metric.Int64Counter
}

// NewMetrics creates flow counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	transitions, err := meter.Int64Counter("deafauth.session.transitions",
		metric.WithDescription("Session state transitions by event type and resulting state"))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("deafauth.challenge.verifications",
		metric.WithDescription("Challenge verifications by type and outcome"))
	if err != nil {
		return nil, err
	}
	return &Metrics{transitions: transitions, verifications: verifications}, nil
}

// RecordTransition counts one successful state transition.
func (m *Metrics) RecordTransition(ctx context.Context, eventType, stateTo string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("state_to", stateTo),
		))
}

// RecordVerification counts one challenge verification outcome.
func (m *Metrics) RecordVerification(ctx context.Context, challengeType string, verified bool) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("challenge_type", challengeType),
			attribute.Bool("verified", verified),
		))
}
