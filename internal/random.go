package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ErrEntropy wraps failures of the random source.
var ErrEntropy = errors.New("random source failure")

// ReadSalt returns n bytes read from r, or from crypto/rand when r is nil.
func ReadSalt(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, errors.New("salt length must be > 0")
	}

	if r == nil {
		r = rand.Reader
	}

	salt := make([]byte, n)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	return salt, nil
}

// NewEventID returns a random UUIDv4 string for audit correlation.
func NewEventID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return id.String()
}
