package domain

import "time"

// Type tags a visual challenge variant.
type Type string

const (
	TypePattern       Type = "pattern"
	TypeImageSelect   Type = "image_select"
	TypeGesture       Type = "gesture"
	TypeColorSequence Type = "color_sequence"
	TypeShapeMatch    Type = "shape_match"
)

// Types lists every challenge type.
var Types = []Type{TypePattern, TypeImageSelect, TypeGesture, TypeColorSequence, TypeShapeMatch}

// Valid reports whether t is a known challenge type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// GestureKind is the gesture family.
type GestureKind string

const (
	GestureSwipe GestureKind = "swipe"
	GestureTap   GestureKind = "tap"
	GestureHold  GestureKind = "hold"
)

// Direction is the gesture direction.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Color is one entry of the fixed color palette.
type Color string

// Shape is one entry of the fixed shape set.
type Shape string

// PatternPayload asks the user to trace a pattern on a grid.
type PatternPayload struct {
	GridRows  int  `json:"gridRows"`
	GridCols  int  `json:"gridCols"`
	MinPoints int  `json:"minPoints"`
	ShowGuide bool `json:"showGuide"`
}

// ImageSelectPayload asks the user to pick the prompted candidate.
type ImageSelectPayload struct {
	Candidates   []string `json:"candidates"`
	CorrectIndex int      `json:"correctIndex"`
	Prompt       string   `json:"prompt"`
}

// GesturePayload asks the user to perform one gesture.
type GesturePayload struct {
	Kind      GestureKind `json:"kind"`
	Direction Direction   `json:"direction"`
}

// ColorSequencePayload asks the user to repeat an ordered color sequence
// shown for DisplayMs milliseconds.
type ColorSequencePayload struct {
	Sequence  []Color `json:"sequence"`
	DisplayMs int64   `json:"displayMs"`
}

// ShapeMatchPayload asks the user to pick the target from a candidate set.
type ShapeMatchPayload struct {
	Candidates []Shape `json:"candidates"`
	Target     Shape   `json:"target"`
}

// VisualChallenge is one generated challenge. Exactly one payload pointer is
// non-nil, and it matches Type; each verifier receives a statically known
// shape instead of an untyped blob.
type VisualChallenge struct {
	ID            string                `json:"id"`
	Type          Type                  `json:"type"`
	Pattern       *PatternPayload       `json:"pattern,omitempty"`
	ImageSelect   *ImageSelectPayload   `json:"imageSelect,omitempty"`
	Gesture       *GesturePayload       `json:"gesture,omitempty"`
	ColorSequence *ColorSequencePayload `json:"colorSequence,omitempty"`
	ShapeMatch    *ShapeMatchPayload    `json:"shapeMatch,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	ExpiresAt     time.Time             `json:"expiresAt"`
	ExtendedUntil *time.Time            `json:"extendedUntil,omitempty"`
	VisualHints   bool                  `json:"visualHints"`
}

// Deadline returns max(ExpiresAt, ExtendedUntil): the challenge is usable
// only while current time is at or before it.
func (c VisualChallenge) Deadline() time.Time {
	if c.ExtendedUntil != nil && c.ExtendedUntil.After(c.ExpiresAt) {
		return *c.ExtendedUntil
	}
	return c.ExpiresAt
}

// Usable reports whether the challenge may still be verified at now.
func (c VisualChallenge) Usable(now time.Time) bool {
	return !now.After(c.Deadline())
}

// PatternResponse carries the traced points for a pattern challenge.
type PatternResponse struct {
	Points []int `json:"points"`
}

// ImageSelectResponse carries the selected candidate index.
type ImageSelectResponse struct {
	SelectedIndex int `json:"selectedIndex"`
}

// GestureResponse carries the performed gesture.
type GestureResponse struct {
	Kind      GestureKind `json:"kind"`
	Direction Direction   `json:"direction"`
}

// ColorSequenceResponse carries the repeated sequence.
type ColorSequenceResponse struct {
	Sequence []Color `json:"sequence"`
}

// ShapeMatchResponse carries the selected shape.
type ShapeMatchResponse struct {
	Selected Shape `json:"selected"`
}

// Response is the tagged union of per-type response payloads. The pointer
// matching the challenge's type must be non-nil; all others nil.
type Response struct {
	Pattern       *PatternResponse       `json:"pattern,omitempty"`
	ImageSelect   *ImageSelectResponse   `json:"imageSelect,omitempty"`
	Gesture       *GestureResponse       `json:"gesture,omitempty"`
	ColorSequence *ColorSequenceResponse `json:"colorSequence,omitempty"`
	ShapeMatch    *ShapeMatchResponse    `json:"shapeMatch,omitempty"`
}

// Result is the outcome of verifying a challenge. Verification is strictly
// boolean; there is no partial credit.
type Result struct {
	Verified    bool      `json:"verified"`
	ChallengeID string    `json:"challengeId"`
	CompletedAt time.Time `json:"completedAt"`
	Attempts    int       `json:"attempts"`
}
