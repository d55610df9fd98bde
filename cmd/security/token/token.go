package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"os"
	"strings"
)

const (
	// KeyEnv is the env var name for the digest HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	KeyEnv = "SESSIOND_TOKEN_DIGEST_KEY"

	// AlgorithmEnv is the env var name for the digest algorithm identifier.
	AlgorithmEnv = "SESSIOND_TOKEN_DIGEST_ALG"

	// AlgHMACSHA256 is the default digest algorithm.
	AlgHMACSHA256 = "hmac-sha256"
	// AlgHMACSHA512 trades storage for a wider digest.
	AlgHMACSHA512 = "hmac-sha512"

	// MinKeyBytes is the minimum accepted HMAC key size.
	MinKeyBytes = 32
)

// Digest is the stored form of a refresh secret: a keyed hash plus the
// algorithm tag that produced it. The raw secret is never part of a Digest.
type Digest struct {
	Value     []byte
	Algorithm string
}

// IsZero reports whether d carries no value.
func (d Digest) IsZero() bool { return len(d.Value) == 0 }

// Digester computes and verifies keyed digests of refresh secrets.
// A Digester is immutable after construction and safe for concurrent use.
type Digester struct {
	alg  string
	key  []byte
	hash func() hash.Hash
}

// NewDigester builds a Digester for the given algorithm identifier.
// It fails fast on an unknown algorithm or a key shorter than MinKeyBytes.
func NewDigester(algorithm string, key []byte) (*Digester, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = AlgHMACSHA256
	}

	var h func() hash.Hash
	switch algorithm {
	case AlgHMACSHA256:
		h = sha256.New
	case AlgHMACSHA512:
		h = sha512.New
	default:
		return nil, ErrUnsupportedAlgorithm
	}

	if len(key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(key) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}

	k := make([]byte, len(key))
	copy(k, key)

	return &Digester{alg: algorithm, key: k, hash: h}, nil
}

// NewDigesterFromEnv builds a Digester from SESSIOND_TOKEN_DIGEST_ALG and SESSIOND_TOKEN_DIGEST_KEY.
func NewDigesterFromEnv() (*Digester, error) {
	key := strings.TrimSpace(os.Getenv(KeyEnv))
	return NewDigester(os.Getenv(AlgorithmEnv), []byte(key))
}

// Algorithm returns the algorithm tag attached to produced digests.
func (d *Digester) Algorithm() string { return d.alg }

// Digest returns the keyed digest of secret.
func (d *Digester) Digest(secret []byte) Digest {
	m := hmac.New(d.hash, d.key)
	_, _ = m.Write(secret)
	return Digest{Value: m.Sum(nil), Algorithm: d.alg}
}

// Verify reports whether secret digests to want.
// It returns false on algorithm or length mismatch instead of failing.
func (d *Digester) Verify(secret []byte, want Digest) bool {
	if d == nil || want.Algorithm != d.alg || len(want.Value) == 0 {
		return false
	}
	got := d.Digest(secret)
	// hmac.Equal is constant-time for equal lengths and returns false otherwise.
	return hmac.Equal(got.Value, want.Value)
}

// NewSecret returns a URL-safe opaque refresh secret made of nBytes random bytes.
func NewSecret(nBytes int) (string, error) {
	if nBytes < 16 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
