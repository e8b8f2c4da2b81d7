// Package feedback maps verification outcomes to deterministic user-facing
// descriptors. No randomness: the same inputs always yield the same feedback,
// which keeps rendering reproducible in tests.
package feedback

import (
	"fmt"
	"time"

	challengedomain "deafauth/backend/internal/challenge/domain"
)

// Kind classifies a feedback descriptor.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindError          Kind = "error"
	KindProgress       Kind = "progress"
	KindTimeoutWarning Kind = "timeout_warning"
)

// timeoutWarningThreshold is the remaining time under which an unverified
// result surfaces as a timeout warning instead of a generic error.
const timeoutWarningThreshold = 30 * time.Second

// Visual is a deterministic user-facing feedback descriptor.
type Visual struct {
	Type          Kind   `json:"type"`
	Message       string `json:"message"`
	IconType      string `json:"iconType"`
	Color         string `json:"color"`
	AnimationType string `json:"animationType,omitempty"`
}

// Generator renders verification outcomes. WithAnimations controls whether
// descriptors carry animation hints (the challenge config's visualFeedback
// option).
type Generator struct {
	WithAnimations bool
}

// NewGenerator returns a Generator with animation hints enabled.
func NewGenerator() *Generator {
	return &Generator{WithAnimations: true}
}

// CreateVisualFeedback renders a result. Priority is fixed: verified wins,
// then a timeout warning when timeRemaining is given and under 30s, then a
// generic error. timeRemaining may be nil when the caller has no deadline at
// hand.
func (g *Generator) CreateVisualFeedback(result challengedomain.Result, timeRemaining *time.Duration) Visual {
	switch {
	case result.Verified:
		return g.visual(KindSuccess, "Verification successful", "check-circle", "green", "pulse")
	case timeRemaining != nil && *timeRemaining < timeoutWarningThreshold:
		secs := int(timeRemaining.Round(time.Second).Seconds())
		if secs < 0 {
			secs = 0
		}
		return g.visual(KindTimeoutWarning,
			fmt.Sprintf("Time is running out: %d seconds remaining", secs),
			"clock", "amber", "blink")
	default:
		return g.visual(KindError, "Verification failed. Please try again.", "x-circle", "red", "shake")
	}
}

// CreateProgress renders an in-flight descriptor, e.g. while an ASL video is
// being processed.
func (g *Generator) CreateProgress(message string) Visual {
	if message == "" {
		message = "Verifying..."
	}
	return g.visual(KindProgress, message, "loader", "blue", "spin")
}

func (g *Generator) visual(kind Kind, message, icon, color, animation string) Visual {
	v := Visual{Type: kind, Message: message, IconType: icon, Color: color}
	if g.WithAnimations {
		v.AnimationType = animation
	}
	return v
}
