// Package hashutil computes hex-encoded digests.
package hashutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"threadkit/internal/collect"
)

// ErrUnknownAlgorithm is returned for an algorithm name that is not registered.
var ErrUnknownAlgorithm = errors.New("hashutil: unknown algorithm")

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "md5"

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// MD5Hex returns the lowercase hex MD5 digest of b (always 32 characters).
func MD5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Digest returns the lowercase hex digest of b using the named algorithm.
func Digest(algo string, b []byte) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestReader streams r through the named algorithm.
func DigestReader(algo string, r io.Reader) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashutil: read input: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Size returns the hex length of digests produced by algo.
func Size(algo string) (int, error) {
	h, err := newHash(algo)
	if err != nil {
		return 0, err
	}
	return hex.EncodedLen(h.Size()), nil
}

// Supported reports whether algo is a known algorithm name.
func Supported(algo string) bool {
	_, ok := algorithms[normalize(algo)]
	return ok
}

// Algorithms returns the registered algorithm names in sorted order.
func Algorithms() []string {
	names := collect.MapToSlice(algorithms, func(name string, _ func() hash.Hash) (string, bool) {
		return name, true
	})
	sort.Strings(names)
	return names
}

func newHash(algo string) (hash.Hash, error) {
	ctor, ok := algorithms[normalize(algo)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	return ctor(), nil
}

func normalize(algo string) string {
	algo = strings.ToLower(strings.TrimSpace(algo))
	if algo == "" {
		return DefaultAlgorithm
	}
	return strings.ReplaceAll(algo, "-", "")
}
