package challenge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"deafauth/backend/internal/challenge/domain"
)

func fixedEngine(at time.Time) *Engine {
	e := NewEngine()
	e.nowF = func() time.Time { return at }
	return e
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerate_AllTypes(t *testing.T) {
	e := fixedEngine(t0)
	for _, typ := range []domain.Type{
		domain.TypePattern, domain.TypeImageSelect, domain.TypeGesture,
		domain.TypeColorSequence, domain.TypeShapeMatch,
	} {
		c, err := e.Generate(typ, Config{})
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if c.Type != typ {
			t.Errorf("%s: type = %s", typ, c.Type)
		}
		if !strings.HasPrefix(c.ID, "vc_") {
			t.Errorf("%s: id = %q, want vc_ prefix", typ, c.ID)
		}
		if got := c.ExpiresAt.Sub(c.CreatedAt); got != 60*time.Second {
			t.Errorf("%s: default validity = %v", typ, got)
		}
		if !c.VisualHints {
			t.Errorf("%s: visual hints disabled by default", typ)
		}
		payloads := 0
		for _, p := range []bool{c.Pattern != nil, c.ImageSelect != nil, c.Gesture != nil, c.ColorSequence != nil, c.ShapeMatch != nil} {
			if p {
				payloads++
			}
		}
		if payloads != 1 {
			t.Errorf("%s: %d payloads set, want exactly 1", typ, payloads)
		}
	}
}

func TestGenerate_UnknownType(t *testing.T) {
	_, err := NewEngine().Generate(domain.Type("riddle"), Config{})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestGenerate_UniqueIDs(t *testing.T) {
	e := NewEngine()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c, err := e.Generate(domain.TypeGesture, Config{})
		if err != nil {
			t.Fatal(err)
		}
		if seen[c.ID] {
			t.Fatalf("duplicate id %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestGenerate_ImageSelectPayload(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeImageSelect, Config{})
	if err != nil {
		t.Fatal(err)
	}
	p := c.ImageSelect
	if len(p.Candidates) != 4 {
		t.Fatalf("candidates = %d, want 4", len(p.Candidates))
	}
	if p.CorrectIndex < 0 || p.CorrectIndex >= len(p.Candidates) {
		t.Fatalf("correct index %d out of range", p.CorrectIndex)
	}
	if !strings.Contains(p.Prompt, p.Candidates[p.CorrectIndex]) {
		t.Errorf("prompt %q does not name the correct candidate %q", p.Prompt, p.Candidates[p.CorrectIndex])
	}
	distinct := make(map[string]bool)
	for _, cand := range p.Candidates {
		if distinct[cand] {
			t.Errorf("duplicate candidate %q", cand)
		}
		distinct[cand] = true
	}
}

func TestGenerate_ColorSequencePayload(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeColorSequence, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.ColorSequence.Sequence) != 4 {
		t.Errorf("sequence length = %d, want 4", len(c.ColorSequence.Sequence))
	}
	if c.ColorSequence.DisplayMs != 3000 {
		t.Errorf("display ms = %d, want 3000", c.ColorSequence.DisplayMs)
	}
}

func TestGenerate_ShapeMatchTargetIsCandidate(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeShapeMatch, Config{})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range c.ShapeMatch.Candidates {
		if s == c.ShapeMatch.Target {
			found = true
		}
	}
	if !found {
		t.Errorf("target %q not among candidates %v", c.ShapeMatch.Target, c.ShapeMatch.Candidates)
	}
}

func TestVerify_ColorSequence(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeColorSequence, Config{})
	if err != nil {
		t.Fatal(err)
	}
	exact := append([]domain.Color(nil), c.ColorSequence.Sequence...)
	if res := e.Verify(c, domain.Response{ColorSequence: &domain.ColorSequenceResponse{Sequence: exact}}); !res.Verified {
		t.Error("exact sequence rejected")
	}

	mutated := append([]domain.Color(nil), c.ColorSequence.Sequence...)
	if mutated[0] == "red" {
		mutated[0] = "blue"
	} else {
		mutated[0] = "red"
	}
	if res := e.Verify(c, domain.Response{ColorSequence: &domain.ColorSequenceResponse{Sequence: mutated}}); res.Verified {
		t.Error("mutated sequence accepted")
	}
	short := exact[:len(exact)-1]
	if res := e.Verify(c, domain.Response{ColorSequence: &domain.ColorSequenceResponse{Sequence: short}}); res.Verified {
		t.Error("truncated sequence accepted")
	}
}

func TestVerify_Gesture(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeGesture, Config{})
	if err != nil {
		t.Fatal(err)
	}
	match := &domain.GestureResponse{Kind: c.Gesture.Kind, Direction: c.Gesture.Direction}
	if res := e.Verify(c, domain.Response{Gesture: match}); !res.Verified {
		t.Error("matching gesture rejected")
	}

	wrongDir := c.Gesture.Direction
	for _, d := range []domain.Direction{domain.DirectionUp, domain.DirectionDown, domain.DirectionLeft, domain.DirectionRight} {
		if d != c.Gesture.Direction {
			wrongDir = d
			break
		}
	}
	if res := e.Verify(c, domain.Response{Gesture: &domain.GestureResponse{Kind: c.Gesture.Kind, Direction: wrongDir}}); res.Verified {
		t.Error("wrong direction accepted")
	}
}

func TestVerify_ImageSelect(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeImageSelect, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if res := e.Verify(c, domain.Response{ImageSelect: &domain.ImageSelectResponse{SelectedIndex: c.ImageSelect.CorrectIndex}}); !res.Verified {
		t.Error("correct index rejected")
	}
	wrong := (c.ImageSelect.CorrectIndex + 1) % len(c.ImageSelect.Candidates)
	if res := e.Verify(c, domain.Response{ImageSelect: &domain.ImageSelectResponse{SelectedIndex: wrong}}); res.Verified {
		t.Error("wrong index accepted")
	}
}

func TestVerify_PatternAlwaysAccepts(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypePattern, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if res := e.Verify(c, domain.Response{Pattern: &domain.PatternResponse{Points: []int{0, 1, 2, 5}}}); !res.Verified {
		t.Error("pattern response rejected")
	}
	if res := e.Verify(c, domain.Response{}); !res.Verified {
		t.Error("empty pattern response rejected")
	}
}

func TestVerify_FailsClosedPastDeadline(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeImageSelect, Config{})
	if err != nil {
		t.Fatal(err)
	}
	e.nowF = func() time.Time { return c.ExpiresAt.Add(time.Second) }
	res := e.Verify(c, domain.Response{ImageSelect: &domain.ImageSelectResponse{SelectedIndex: c.ImageSelect.CorrectIndex}})
	if res.Verified {
		t.Fatal("correct answer accepted past deadline")
	}

	// An extension moves the effective deadline.
	extended := ExtendTimeout(c, time.Minute)
	res = e.Verify(extended, domain.Response{ImageSelect: &domain.ImageSelectResponse{SelectedIndex: c.ImageSelect.CorrectIndex}})
	if !res.Verified {
		t.Fatal("correct answer rejected within extended deadline")
	}
}

func TestExtendTimeout_CommutativeAndNonMutating(t *testing.T) {
	e := fixedEngine(t0)
	c, err := e.Generate(domain.TypeGesture, Config{})
	if err != nil {
		t.Fatal(err)
	}

	ab := ExtendTimeout(ExtendTimeout(c, time.Minute), 2*time.Minute)
	ba := ExtendTimeout(ExtendTimeout(c, 2*time.Minute), time.Minute)
	if !ab.Deadline().Equal(ba.Deadline()) {
		t.Errorf("extension order changed deadline: %v vs %v", ab.Deadline(), ba.Deadline())
	}
	want := c.ExpiresAt.Add(3 * time.Minute)
	if !ab.Deadline().Equal(want) {
		t.Errorf("composed deadline = %v, want %v", ab.Deadline(), want)
	}
	if c.ExtendedUntil != nil {
		t.Error("original challenge mutated by extension")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.DefaultTimeout != 60*time.Second {
		t.Errorf("DefaultTimeout = %v", cfg.DefaultTimeout)
	}
	if cfg.ExtendedTimeout != 5*time.Minute {
		t.Errorf("ExtendedTimeout = %v", cfg.ExtendedTimeout)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
}
