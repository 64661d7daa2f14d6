package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
)

const (
	BlockSize = aes.BlockSize

	// MaxLength is the largest value the little-endian length codec accepts.
	// Other clients read the field as a double, so anything above 2^53-1
	// would not survive a round trip.
	MaxLength = 1<<53 - 1
)

var (
	ErrBlockSize   = errors.New("crypto: input is not a multiple of the block size")
	ErrHashSize    = errors.New("crypto: hash size must be 256 or 512")
	ErrLengthRange = errors.New("crypto: length out of range")

	prng io.Reader = rand.Reader
)

// EncryptCBC encrypts plaintext with AES-256 in CBC mode. No padding is
// applied; the caller pads to a whole number of blocks.
func EncryptCBC(plaintext, key, iv []byte) ([]byte, error) {
	if len(plaintext)%BlockSize != 0 {
		return nil, ErrBlockSize
	}
	if len(key) != KeySize {
		return nil, &KeyLengthError{Field: "encryption", Got: len(key)}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("crypto: iv must be %d bytes", BlockSize)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// DecryptCBC is the inverse of EncryptCBC.
func DecryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	if len(ciphertext)%BlockSize != 0 {
		return nil, ErrBlockSize
	}
	if len(key) != KeySize {
		return nil, &KeyLengthError{Field: "encryption", Got: len(key)}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("crypto: iv must be %d bytes", BlockSize)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func hashFunc(bits int) (func() hash.Hash, error) {
	switch bits {
	case 256:
		return sha256.New, nil
	case 512:
		return sha512.New, nil
	default:
		return nil, ErrHashSize
	}
}

// HMAC returns HMAC-SHA256 or HMAC-SHA512 of data, selected by bits.
func HMAC(data, key []byte, bits int) ([]byte, error) {
	h, err := hashFunc(bits)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(h, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// Hash returns SHA-256 or SHA-512 of data, selected by bits.
func Hash(data []byte, bits int) ([]byte, error) {
	h, err := hashFunc(bits)
	if err != nil {
		return nil, err
	}
	d := h()
	d.Write(data)
	return d.Sum(nil), nil
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrLengthRange
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(prng, b); err != nil {
		return nil, fmt.Errorf("crypto: random source failed: %w", err)
	}
	return b, nil
}

// LittleEndian encodes n as 8 little-endian bytes.
func LittleEndian(n uint64) ([]byte, error) {
	if n > MaxLength {
		return nil, ErrLengthRange
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b, nil
}

// ParseLittleEndian decodes up to 8 little-endian bytes. Shorter input is
// treated as zero-padded.
func ParseLittleEndian(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, ErrLengthRange
	}
	var buf [8]byte
	copy(buf[:], b)
	n := binary.LittleEndian.Uint64(buf[:])
	if n > MaxLength {
		return 0, ErrLengthRange
	}
	return n, nil
}

// Pad prepends 1..16 random bytes so the result fills whole blocks. The
// padding sits in front of the data; Unpad trims from the front.
func Pad(data []byte) ([]byte, error) {
	n := BlockSize - len(data)%BlockSize
	padding, err := RandomBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, n+len(data))
	out = append(out, padding...)
	out = append(out, data...)
	return out, nil
}

// Unpad returns the trailing plaintextLength bytes of data.
func Unpad(plaintextLength int, data []byte) ([]byte, error) {
	if plaintextLength < 0 || plaintextLength > len(data) {
		return nil, ErrLengthRange
	}
	return data[len(data)-plaintextLength:], nil
}

// DecodeBase64 decodes standard base64, tolerating missing or surplus '='
// padding and surrounding whitespace.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	return base64.RawStdEncoding.DecodeString(s)
}

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
