// Package fingerprint derives stable customer identifiers from contact data so booking
// behavior can be correlated across sessions without storing raw phone numbers.
package fingerprint

import (
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

const (
	mexicoCountryCode = "52"
	prefix            = "fp_"
)

var (
	ErrEmptyPhone   = errors.New("phone number is empty")
	ErrInvalidPhone = errors.New("phone number must contain 10 to 15 digits")
	ErrKeyTooLong   = errors.New("fingerprint key must be at most 64 bytes")
)

// Hasher computes keyed BLAKE2b fingerprints.
type Hasher struct {
	key []byte
}

// NewHasher creates a Hasher. The key scopes fingerprints to a deployment.
func NewHasher(key string) (*Hasher, error) {
	if len(key) > blake2b.Size {
		return nil, ErrKeyTooLong
	}
	return &Hasher{key: []byte(key)}, nil
}

// NormalizePhone strips formatting and returns digits in international form.
// Ten-digit numbers are assumed to be Mexican national numbers.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmptyPhone
	}

	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00")

	// Legacy mobile prefix: +52 1 XXXXXXXXXX
	if len(digits) == 13 && strings.HasPrefix(digits, mexicoCountryCode+"1") {
		digits = mexicoCountryCode + digits[3:]
	}
	if len(digits) == 10 {
		digits = mexicoCountryCode + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// FromPhone returns the fingerprint for a phone number.
func (h *Hasher) FromPhone(phone string) (string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	return h.sum("phone:" + normalized)
}

// FromIdentity returns the fingerprint for an opaque identity (e.g. an IdP subject).
func (h *Hasher) FromIdentity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", errors.New("identity is empty")
	}
	return h.sum("identity:" + identity)
}

func (h *Hasher) sum(input string) (string, error) {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return "", err
	}
	mac.Write([]byte(input))
	return prefix + hex.EncodeToString(mac.Sum(nil)), nil
}
