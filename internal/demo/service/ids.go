package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLength = 7
)

// NewProjectID generates a demo project id without coordination.
// Format: "prefix-unixMillis-suffix" (e.g., "demo-1760616000000-k3v9x0a")
func NewProjectID(prefix string, now time.Time) (string, error) {
	suffix, err := randomSuffix(idSuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate project id: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), suffix), nil
}

func randomSuffix(n int) (string, error) {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = idAlphabet[idx.Int64()]
	}
	return string(b), nil
}
