// Package keys derives fixed-length cache keys from arbitrary identifiers.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	AlgorithmSHA256  Algorithm = "sha256"
	AlgorithmSHA3256 Algorithm = "sha3-256"
	AlgorithmBLAKE3  Algorithm = "blake3"
)

// KeyLength is the length of every derived key: a 256-bit digest rendered as hex.
const KeyLength = 64

// Deriver maps identifiers to cache keys.
//
// Contract:
// - Determinism: the same identifier always yields the same key.
// - Concurrency: safe for concurrent use.
type Deriver struct {
	algorithm Algorithm
}

// NewDeriver returns a Deriver for the named algorithm. An empty name selects sha256.
func NewDeriver(algorithm string) (*Deriver, error) {
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return &Deriver{algorithm: algo}, nil
}

// ParseAlgorithm normalises an algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", AlgorithmSHA256:
		return AlgorithmSHA256, nil
	case AlgorithmSHA3256:
		return AlgorithmSHA3256, nil
	case AlgorithmBLAKE3:
		return AlgorithmBLAKE3, nil
	default:
		return "", apperrors.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported key algorithm %q", name))
	}
}

// Algorithm reports the digest used by the deriver.
func (d *Deriver) Algorithm() Algorithm {
	if d == nil || d.algorithm == "" {
		return AlgorithmSHA256
	}
	return d.algorithm
}

// Derive returns the hex digest of identifier.
func (d *Deriver) Derive(identifier string) (string, error) {
	if !utf8.ValidString(identifier) {
		return "", apperrors.ErrEncoding.WithMessage("identifier is not valid UTF-8")
	}

	data := []byte(identifier)
	switch d.Algorithm() {
	case AlgorithmSHA3256:
		sum := sha3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmBLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	}
}

// Derive hashes identifier with the default sha256 algorithm.
func Derive(identifier string) (string, error) {
	return (*Deriver)(nil).Derive(identifier)
}

// Valid reports whether key has the shape of a derived key.
func Valid(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
