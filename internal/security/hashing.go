package security

import "golang.org/x/crypto/bcrypt"

// CodeHasher hashes and verifies one-time fallback codes with bcrypt, so the
// transient session context never holds a plaintext code after delivery.
type CodeHasher struct {
	Cost int
}

// NewCodeHasher returns a CodeHasher with the given bcrypt cost (4-31).
// Non-positive cost falls back to bcrypt's default.
func NewCodeHasher(cost int) *CodeHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &CodeHasher{Cost: cost}
}

// Hash produces a bcrypt hash of code suitable for keeping in the session
// context. Callers must not log or persist the plaintext code.
func (h *CodeHasher) Hash(code string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies code against a stored hash in constant time. Returns nil
// on match, bcrypt.ErrMismatchedHashAndPassword otherwise.
func (h *CodeHasher) Compare(hash, code string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
}
