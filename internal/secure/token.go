package secure

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Token length bounds in raw bytes. Hex encoding doubles the length of
// the resulting string.
const (
	MinTokenBytes = 8
	MaxTokenBytes = 32

	// PathTokenBytes is the token size embedded in secure file paths:
	// 12 random bytes, 24 hex characters, 96 bits of entropy.
	PathTokenBytes = 12

	// PathTokenHexLength is the encoded length of a path token.
	PathTokenHexLength = 2 * PathTokenBytes
)

// ErrTokenLength indicates the requested token size is outside [8, 32] bytes.
var ErrTokenLength = errors.New("token length must be between 8 and 32 bytes")

var pathTokenPattern = regexp.MustCompile(`^[a-f0-9]{24}$`)

// GenerateToken returns lengthBytes of cryptographically secure random
// data, hex-encoded. This is the sole source of unguessability for secure
// file paths; it must never be replaced with a general-purpose PRNG.
func GenerateToken(lengthBytes int) (string, error) {
	if lengthBytes < MinTokenBytes || lengthBytes > MaxTokenBytes {
		return "", fmt.Errorf("%w: got %d", ErrTokenLength, lengthBytes)
	}

	buf := make([]byte, lengthBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// GeneratePathToken returns a token of the exact size embedded in secure
// file paths.
func GeneratePathToken() (string, error) {
	return GenerateToken(PathTokenBytes)
}

// IsValidToken reports whether token is exactly 24 lowercase hex
// characters. It is the independent sanity check applied to any token
// arriving from outside (URL segment, query parameter, request body)
// before it is trusted for a file lookup.
func IsValidToken(token string) bool {
	return pathTokenPattern.MatchString(token)
}
