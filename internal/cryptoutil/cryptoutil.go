// Package cryptoutil provides the secret-at-rest encryption and
// deterministic-ID derivation used across the data-access facade.
//
// Secrets (provider API keys, virtual keys, session tokens) are never
// stored in plaintext. Encryption uses AES-256-GCM with a key derived from
// a per-row salt and a process-wide pepper; IDs for secret-bearing
// rows are derived deterministically via UUIDv5 so that a secret can be
// looked up without a table scan.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrCiphertextTooShort is returned when decoding a ciphertext shorter than
// the GCM nonce size.
var ErrCiphertextTooShort = errors.New("cryptoutil: ciphertext too short")

// ErrInvalidTimeFormat is returned by ParseAndAddToCurrentTS when the
// duration string does not match "<n><unit>".
var ErrInvalidTimeFormat = errors.New("cryptoutil: invalid time format")

// durationUnits maps each accepted single-letter suffix to its length.
// Month and year are calendar-naive (30 and 365 days) rather than
// calendar-aware, matching how every caller in this codebase treats
// expiry windows.
var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
	'M': 30 * 24 * time.Hour,
	'y': 365 * 24 * time.Hour,
}

// ParseAndAddToCurrentTS parses a "<n><unit>" duration string — unit one of
// s|m|h|d|w|M|y — and returns now plus that duration. Used to turn a
// configured or requested TTL string (session tokens, invite codes) into
// an absolute expiry without each caller hand-rolling the same parse.
func ParseAndAddToCurrentTS(duration string, now time.Time) (time.Time, error) {
	if len(duration) < 2 {
		return time.Time{}, ErrInvalidTimeFormat
	}
	unit, ok := durationUnits[duration[len(duration)-1]]
	if !ok {
		return time.Time{}, ErrInvalidTimeFormat
	}
	n, err := strconv.Atoi(duration[:len(duration)-1])
	if err != nil || n < 0 {
		return time.Time{}, ErrInvalidTimeFormat
	}
	return now.Add(time.Duration(n) * unit), nil
}

// DeriveKey derives a 32-byte AES-256 key from a per-row salt and the
// process-wide pepper. Both salt and pepper are caller-supplied strings;
// the salt is normally a random value stored alongside the ciphertext, and
// the pepper is the application-wide secret from configuration.
func DeriveKey(salt, pepper string) [32]byte {
	return sha256.Sum256([]byte(salt + pepper))
}

// Encrypt seals plaintext under AES-256-GCM using a key derived from salt
// and pepper, and returns hex(nonce || ciphertext).
func Encrypt(plaintext []byte, salt, pepper string) (string, error) {
	key := DeriveKey(salt, pepper)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("cryptoutil: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptoutil: read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(ciphertextHex string, salt, pepper string) ([]byte, error) {
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode hex: %w", err)
	}
	key := DeriveKey(salt, pepper)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new gcm: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: open: %w", err)
	}
	return plaintext, nil
}

// DeriveID returns a deterministic UUIDv5 for the given secret, under the
// DNS namespace. Identical input always yields the same ID, letting a
// secret-bearing row (virtual key, session token) be found by ID lookup
// instead of a linear decrypt-and-compare scan.
func DeriveID(secret string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(secret))
}

// GenerateSecret returns a random, URL-safe secret of n raw bytes, hex
// encoded, prefixed with prefix (e.g. "llmur-vk-").
func GenerateSecret(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("cryptoutil: generate secret: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}
