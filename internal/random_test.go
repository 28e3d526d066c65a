package internal

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestReadSaltDefaultsToCryptoRand(t *testing.T) {
	salt, err := ReadSalt(nil, 16)
	if err != nil {
		t.Fatalf("ReadSalt error: %v", err)
	}
	if len(salt) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(salt))
	}
}

func TestReadSaltUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		salt, err := ReadSalt(rand.Reader, 16)
		if err != nil {
			t.Fatalf("ReadSalt error: %v", err)
		}
		if _, dup := seen[string(salt)]; dup {
			t.Fatalf("duplicate salt after %d draws", i)
		}
		seen[string(salt)] = struct{}{}
	}
}

func TestReadSaltShortSource(t *testing.T) {
	_, err := ReadSalt(bytes.NewReader([]byte{1, 2, 3}), 16)
	if !errors.Is(err, ErrEntropy) {
		t.Fatalf("expected ErrEntropy, got %v", err)
	}
}

func TestReadSaltZeroLength(t *testing.T) {
	if _, err := ReadSalt(strings.NewReader("x"), 0); err == nil {
		t.Fatal("expected zero-length salt to fail")
	}
}

func TestNewEventIDIsUUID(t *testing.T) {
	id := NewEventID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid, got %q: %v", id, err)
	}
	if id == NewEventID() {
		t.Fatal("expected distinct event ids")
	}
}
