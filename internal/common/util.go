package common

import "crypto/rand"

// GenerateRandBytes returns size bytes read from crypto/rand.
func GenerateRandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// WipeByteArray overwrites b with zeros. Used to drop plaintext passwords
// read from the terminal once they are no longer needed. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
