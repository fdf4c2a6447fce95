package encryption

import (
	"bytes"
	"fmt"

	"mediapipe/internal/media"
)

// testHeader marks bodies sealed by TestSealer.
var testHeader = []byte("MPSEAL\x00\x00")

// TestSealer prepends a fixed header instead of encrypting. Sealed output
// differs from the plaintext while staying deterministic and reversible.
type TestSealer struct{}

var _ media.Sealer = (*TestSealer)(nil)

func NewTestSealer() *TestSealer {
	return &TestSealer{}
}

func (s *TestSealer) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, len(testHeader)+len(plaintext))
	out = append(out, testHeader...)
	return append(out, plaintext...), nil
}

func (s *TestSealer) Open(ciphertext []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, testHeader) {
		return nil, fmt.Errorf("invalid test seal header")
	}
	return bytes.Clone(ciphertext[len(testHeader):]), nil
}
