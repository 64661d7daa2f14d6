package crypto

import (
	"crypto/subtle"
	"fmt"
)

// KeySize is the length of each half of a KeyPair.
const KeySize = 32

// KeyLengthError reports a key of the wrong size. It signals a programming
// error rather than bad input.
type KeyLengthError struct {
	Field string
	Got   int
}

func (e *KeyLengthError) Error() string {
	return fmt.Sprintf("crypto: %s key must be %d bytes, got %d", e.Field, KeySize, e.Got)
}

// KeyPair holds an AES-256 encryption key and an HMAC-SHA256 key. Both are
// pinned in memory best-effort until Zero.
type KeyPair struct {
	enc [KeySize]byte
	mac [KeySize]byte
}

// NewKeyPair copies enc and mac into a new KeyPair. The caller keeps
// ownership of the input slices.
func NewKeyPair(enc, mac []byte) (*KeyPair, error) {
	if len(enc) != KeySize {
		return nil, &KeyLengthError{Field: "encryption", Got: len(enc)}
	}
	if len(mac) != KeySize {
		return nil, &KeyLengthError{Field: "hmac", Got: len(mac)}
	}
	kp := &KeyPair{}
	copy(kp.enc[:], enc)
	copy(kp.mac[:], mac)
	_ = lockMemory(kp.enc[:])
	_ = lockMemory(kp.mac[:])
	return kp, nil
}

// SplitKeyPair builds a KeyPair from 64 bytes: encryption key first.
func SplitKeyPair(b []byte) (*KeyPair, error) {
	if len(b) != 2*KeySize {
		return nil, &KeyLengthError{Field: "combined", Got: len(b)}
	}
	return NewKeyPair(b[:KeySize], b[KeySize:])
}

// GenerateKeyPair returns a KeyPair filled from the random source.
func GenerateKeyPair() (*KeyPair, error) {
	b, err := RandomBytes(2 * KeySize)
	if err != nil {
		return nil, err
	}
	defer Zero(b)
	return SplitKeyPair(b)
}

func (k *KeyPair) EncryptionKey() []byte {
	out := make([]byte, KeySize)
	copy(out, k.enc[:])
	return out
}

func (k *KeyPair) HMACKey() []byte {
	out := make([]byte, KeySize)
	copy(out, k.mac[:])
	return out
}

// Bytes returns encryption key || hmac key. Callers should Zero the result.
func (k *KeyPair) Bytes() []byte {
	out := make([]byte, 0, 2*KeySize)
	out = append(out, k.enc[:]...)
	out = append(out, k.mac[:]...)
	return out
}

// Equal compares two key pairs in constant time.
func (k *KeyPair) Equal(other *KeyPair) bool {
	if k == nil || other == nil {
		return k == other
	}
	a, b := k.Bytes(), other.Bytes()
	defer Zero(a)
	defer Zero(b)
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zero wipes both keys. The pair must not be used afterwards.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	Zero(k.enc[:])
	Zero(k.mac[:])
	_ = unlockMemory(k.enc[:])
	_ = unlockMemory(k.mac[:])
}
