package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultCharset excludes the visually ambiguous glyphs I, O, 0 and 1.
	DefaultCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	DefaultHashLength     = 8
	DefaultChecksumLength = 2
)

// Codec encodes, decodes and validates the external token string format
// PREFIX_HASH_CHECKSUM, e.g. STU_H7K2P9M3_X8.
type Codec struct {
	charset        string
	hashLength     int
	checksumLength int
}

// Parts is a decoded token value.
type Parts struct {
	Prefix   string
	Hash     string
	Checksum string
	Type     Type
}

// NewCodec builds a codec. Zero values fall back to the defaults, so
// NewCodec("", 0, 0) yields the standard STU_XXXXXXXX_XX format.
func NewCodec(charset string, hashLength, checksumLength int) *Codec {
	if charset == "" {
		charset = DefaultCharset
	}
	if hashLength <= 0 {
		hashLength = DefaultHashLength
	}
	if checksumLength <= 0 {
		checksumLength = DefaultChecksumLength
	}
	return &Codec{charset: charset, hashLength: hashLength, checksumLength: checksumLength}
}

// Checksum computes the two-character checksum over "prefix_hash".
// It is a summation-based rolling checksum: a fast format sanity check,
// deliberately not a cryptographic hash. The anonymity of a token comes from
// the random hash segment, never from this.
func (c *Codec) Checksum(prefix, hash string) string {
	n := len(c.charset)
	acc := 0
	for _, ch := range prefix + "_" + hash {
		acc = (acc + int(ch)) % (n * n)
	}
	return string(c.charset[acc/n]) + string(c.charset[acc%n])
}

// Format assembles a full token value from a prefix and hash.
func (c *Codec) Format(prefix, hash string) string {
	return prefix + "_" + hash + "_" + c.Checksum(prefix, hash)
}

// Parse splits a token value into its segments and validates the format:
// exactly three underscore-delimited parts, hash and checksum of the configured
// lengths, all characters from the configured charset, and a known prefix.
func (c *Codec) Parse(value string) (Parts, error) {
	segs := strings.Split(value, "_")
	if len(segs) != 3 {
		return Parts{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidFormat, len(segs))
	}

	prefix, hash, checksum := segs[0], segs[1], segs[2]
	if len(hash) != c.hashLength {
		return Parts{}, fmt.Errorf("%w: hash length %d, expected %d", ErrInvalidFormat, len(hash), c.hashLength)
	}
	if len(checksum) != c.checksumLength {
		return Parts{}, fmt.Errorf("%w: checksum length %d, expected %d", ErrInvalidFormat, len(checksum), c.checksumLength)
	}
	if !c.fromCharset(hash) || !c.fromCharset(strings.ToUpper(checksum)) {
		return Parts{}, fmt.Errorf("%w: segment contains characters outside charset", ErrInvalidFormat)
	}

	typ, err := TypeFromPrefix(prefix)
	if err != nil {
		return Parts{}, err
	}

	return Parts{Prefix: prefix, Hash: hash, Checksum: checksum, Type: typ}, nil
}

// ValidChecksum reports whether the checksum segment of value matches the
// recomputed checksum for its prefix and hash. Comparison is case-insensitive.
func (c *Codec) ValidChecksum(value string) bool {
	parts, err := c.Parse(value)
	if err != nil {
		return false
	}
	return c.ChecksumMatches(parts.Prefix, parts.Hash, parts.Checksum)
}

// ChecksumMatches checks an already-parsed value, case-insensitively.
func (c *Codec) ChecksumMatches(prefix, hash, checksum string) bool {
	return strings.EqualFold(checksum, c.Checksum(prefix, hash))
}

// RandomHash generates a hash segment from the configured charset using
// crypto/rand.
func (c *Codec) RandomHash() (string, error) {
	var sb strings.Builder
	sb.Grow(c.hashLength)
	max := big.NewInt(int64(len(c.charset)))
	for i := 0; i < c.hashLength; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random hash: %w", err)
		}
		sb.WriteByte(c.charset[idx.Int64()])
	}
	return sb.String(), nil
}

// NewSalt returns 32 random bytes hex-encoded. Salts are stored with each
// token for auditability; they take no part in checksum verification.
func NewSalt() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (c *Codec) fromCharset(s string) bool {
	for _, ch := range s {
		if !strings.ContainsRune(c.charset, ch) {
			return false
		}
	}
	return true
}
