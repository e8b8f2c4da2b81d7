// Package challenge generates and verifies accessibility-first visual
// challenges. Engine operations are pure functions of their inputs and the
// clock; there is no shared mutable state, so concurrent use needs no
// coordination.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"deafauth/backend/internal/challenge/domain"
)

// ErrChallengeExpired is returned by callers that surface expiry as a typed
// outcome; Verify itself fails closed with Verified=false.
var ErrChallengeExpired = errors.New("challenge expired")

// ErrUnknownType is returned by Generate for a type outside the closed set.
var ErrUnknownType = errors.New("unknown challenge type")

// Config holds per-challenge generation options. Zero values are replaced by
// the documented defaults.
type Config struct {
	// DefaultTimeout is the base validity window (default 60s).
	DefaultTimeout time.Duration
	// ExtendedTimeout is the ceiling offered by one grant of extension
	// (default 5m).
	ExtendedTimeout time.Duration
	// MaxAttempts is the retry ceiling consumed by the attempt tracker
	// (default 3).
	MaxAttempts int
	// VisualFeedback controls whether feedback descriptors carry animation
	// hints (default true; DisableVisualFeedback opts out).
	DisableVisualFeedback bool
}

const (
	defaultTimeout  = 60 * time.Second
	extendedTimeout = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
	if c.ExtendedTimeout <= 0 {
		c.ExtendedTimeout = extendedTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Fixed candidate pools. The palette and shape set are closed: responses are
// compared by exact membership, so generation and verification must agree.
var (
	palette = []domain.Color{"red", "blue", "green", "yellow", "purple", "orange"}
	shapes  = []domain.Shape{"circle", "square", "triangle", "star", "hexagon", "diamond"}
	icons   = []string{"sun", "moon", "tree", "house", "bird", "wave"}

	gestureKinds      = []domain.GestureKind{domain.GestureSwipe, domain.GestureTap, domain.GestureHold}
	gestureDirections = []domain.Direction{domain.DirectionUp, domain.DirectionDown, domain.DirectionLeft, domain.DirectionRight}
)

const (
	patternGridSize    = 3
	patternMinPoints   = 4
	colorSequenceLen   = 4
	colorDisplayMs     = 3000
	imageCandidates    = 4
	shapeCandidates    = 4
	idRandomSuffixSize = 8
)

// Engine generates and verifies visual challenges.
type Engine struct {
	nowF func() time.Time
}

// NewEngine returns an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{nowF: func() time.Time { return time.Now().UTC() }}
}

// Generate builds a challenge of the given type. Random draws (correct index,
// gesture pair, color order, target shape) use crypto/rand uniformly; the
// challenge ID combines a time component with a random suffix.
func (e *Engine) Generate(t domain.Type, cfg Config) (domain.VisualChallenge, error) {
	if !t.Valid() {
		return domain.VisualChallenge{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	cfg = cfg.withDefaults()
	now := e.nowF()
	id, err := newChallengeID(now)
	if err != nil {
		return domain.VisualChallenge{}, err
	}
	c := domain.VisualChallenge{
		ID:          id,
		Type:        t,
		CreatedAt:   now,
		ExpiresAt:   now.Add(cfg.DefaultTimeout),
		VisualHints: !cfg.DisableVisualFeedback,
	}

	switch t {
	case domain.TypePattern:
		c.Pattern = &domain.PatternPayload{
			GridRows:  patternGridSize,
			GridCols:  patternGridSize,
			MinPoints: patternMinPoints,
			ShowGuide: !cfg.DisableVisualFeedback,
		}
	case domain.TypeImageSelect:
		idx, err := randIndex(imageCandidates)
		if err != nil {
			return domain.VisualChallenge{}, err
		}
		candidates, err := drawDistinct(icons, imageCandidates)
		if err != nil {
			return domain.VisualChallenge{}, err
		}
		c.ImageSelect = &domain.ImageSelectPayload{
			Candidates:   candidates,
			CorrectIndex: idx,
			Prompt:       fmt.Sprintf("Select the %s", candidates[idx]),
		}
	case domain.TypeGesture:
		ki, err := randIndex(len(gestureKinds))
		if err != nil {
			return domain.VisualChallenge{}, err
		}
		di, err := randIndex(len(gestureDirections))
		if err != nil {
			return domain.VisualChallenge{}, err
		}
		c.Gesture = &domain.GesturePayload{
			Kind:      gestureKinds[ki],
			Direction: gestureDirections[di],
		}
	case domain.TypeColorSequence:
		seq := make([]domain.Color, colorSequenceLen)
		for i := range seq {
			ci, err := randIndex(len(palette))
			if err != nil {
				return domain.VisualChallenge{}, err
			}
			seq[i] = palette[ci]
		}
		c.ColorSequence = &domain.ColorSequencePayload{
			Sequence:  seq,
			DisplayMs: colorDisplayMs,
		}
	case domain.TypeShapeMatch:
		candidates, err := drawDistinctShapes(shapes, shapeCandidates)
		if err != nil {
			return domain.VisualChallenge{}, err
		}
		ti, err := randIndex(len(candidates))
		if err != nil {
			return domain.VisualChallenge{}, err
		}
		c.ShapeMatch = &domain.ShapeMatchPayload{
			Candidates: candidates,
			Target:     candidates[ti],
		}
	}
	return c, nil
}

// Verify evaluates a response against the challenge at the current time.
// Past max(expiresAt, extendedUntil) it fails closed regardless of response
// correctness. Result.Attempts is filled in by the caller that tracks
// attempts.
func (e *Engine) Verify(c domain.VisualChallenge, resp domain.Response) domain.Result {
	now := e.nowF()
	res := domain.Result{ChallengeID: c.ID, CompletedAt: now}
	if !c.Usable(now) {
		return res
	}
	switch c.Type {
	case domain.TypePattern:
		// Pattern tracing has no comparator yet: any response is accepted.
		// Known placeholder inherited from the reference behavior; pinned by
		// TestVerify_PatternAlwaysAccepts. Do not tighten without a product
		// decision.
		res.Verified = c.Pattern != nil
	case domain.TypeImageSelect:
		res.Verified = c.ImageSelect != nil && resp.ImageSelect != nil &&
			resp.ImageSelect.SelectedIndex == c.ImageSelect.CorrectIndex
	case domain.TypeGesture:
		res.Verified = c.Gesture != nil && resp.Gesture != nil &&
			resp.Gesture.Kind == c.Gesture.Kind &&
			resp.Gesture.Direction == c.Gesture.Direction
	case domain.TypeColorSequence:
		res.Verified = c.ColorSequence != nil && resp.ColorSequence != nil &&
			colorsEqual(c.ColorSequence.Sequence, resp.ColorSequence.Sequence)
	case domain.TypeShapeMatch:
		res.Verified = c.ShapeMatch != nil && resp.ShapeMatch != nil &&
			resp.ShapeMatch.Selected == c.ShapeMatch.Target
	}
	return res
}

// ExtendTimeout returns a copy of c with ExtendedUntil pushed to
// max(expiresAt, extendedUntil) + additional. The original value is unchanged;
// applying extensions a then b yields the same deadline as b then a.
func ExtendTimeout(c domain.VisualChallenge, additional time.Duration) domain.VisualChallenge {
	deadline := c.Deadline().Add(additional)
	c.ExtendedUntil = &deadline
	return c
}

func colorsEqual(want, got []domain.Color) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// newChallengeID combines a millisecond time component with a crypto-random
// hex suffix for collision resistance.
func newChallengeID(now time.Time) (string, error) {
	suffix := make([]byte, idRandomSuffixSize)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("challenge id: %w", err)
	}
	return "vc_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + hex.EncodeToString(suffix), nil
}

// randIndex draws uniformly from [0, n) using crypto/rand.
func randIndex(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("randIndex: empty pool")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// drawDistinct picks n distinct entries from pool in random order.
func drawDistinct(pool []string, n int) ([]string, error) {
	if n > len(pool) {
		n = len(pool)
	}
	remaining := append([]string(nil), pool...)
	out := make([]string, 0, n)
	for len(out) < n {
		i, err := randIndex(len(remaining))
		if err != nil {
			return nil, err
		}
		out = append(out, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return out, nil
}

func drawDistinctShapes(pool []domain.Shape, n int) ([]domain.Shape, error) {
	if n > len(pool) {
		n = len(pool)
	}
	remaining := append([]domain.Shape(nil), pool...)
	out := make([]domain.Shape, 0, n)
	for len(out) < n {
		i, err := randIndex(len(remaining))
		if err != nil {
			return nil, err
		}
		out = append(out, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return out, nil
}
