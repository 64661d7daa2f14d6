package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Header is the magic that starts every opdata01 container except the
// item key variant.
var Header = []byte("opdata01")

const (
	headerSize = 8
	lengthSize = 8
	ivSize     = BlockSize
	macSize    = sha256.Size

	// smallest containers: one cipher block of payload
	minItemKeySize   = ivSize + BlockSize + macSize
	minContainerSize = headerSize + lengthSize + ivSize + BlockSize + macSize
)

var (
	ErrFormat    = errors.New("crypto: not a valid opdata01 container")
	ErrIntegrity = errors.New("crypto: integrity check failed")
)

// Kind selects how a container is framed and how its plaintext is read.
type Kind int

const (
	KindItem Kind = iota + 1
	KindItemKey
	KindProfileKey
	KindBuffer
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindItemKey:
		return "itemKey"
	case KindProfileKey:
		return "profileKey"
	case KindBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) valid() bool { return k >= KindItem && k <= KindBuffer }

// Codec seals and opens opdata01 containers under a single key pair.
type Codec struct {
	keys *KeyPair
}

func NewCodec(keys *KeyPair) *Codec {
	return &Codec{keys: keys}
}

// Seal encrypts plaintext and returns the complete container, HMAC included.
// For KindItemKey the plaintext must be the 64 bytes of an item key pair.
func (c *Codec) Seal(kind Kind, plaintext []byte) ([]byte, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("crypto: unknown container kind %v", kind)
	}
	enc := c.keys.EncryptionKey()
	mac := c.keys.HMACKey()
	defer ZeroAll(enc, mac)

	iv, err := RandomBytes(ivSize)
	if err != nil {
		return nil, err
	}

	var body []byte
	if kind == KindItemKey {
		if len(plaintext) != 2*KeySize {
			return nil, &KeyLengthError{Field: "item", Got: len(plaintext)}
		}
		ct, err := EncryptCBC(plaintext, enc, iv)
		if err != nil {
			return nil, err
		}
		body = make([]byte, 0, ivSize+len(ct)+macSize)
		body = append(body, iv...)
		body = append(body, ct...)
	} else {
		length, err := LittleEndian(uint64(len(plaintext)))
		if err != nil {
			return nil, err
		}
		padded, err := Pad(plaintext)
		if err != nil {
			return nil, err
		}
		// The IV is also the first plaintext block.
		inner := make([]byte, 0, ivSize+len(padded))
		inner = append(inner, iv...)
		inner = append(inner, padded...)
		Zero(padded)
		ct, err := EncryptCBC(inner, enc, iv)
		Zero(inner)
		if err != nil {
			return nil, err
		}
		body = make([]byte, 0, headerSize+lengthSize+ivSize+len(ct)+macSize)
		body = append(body, Header...)
		body = append(body, length...)
		body = append(body, iv...)
		body = append(body, ct...)
	}

	tag, err := HMAC(body, mac, 256)
	if err != nil {
		return nil, err
	}
	return append(body, tag...), nil
}

// SealItemKey wraps an item's key pair in the header-less item key container.
func (c *Codec) SealItemKey(itemKeys *KeyPair) ([]byte, error) {
	raw := itemKeys.Bytes()
	defer Zero(raw)
	return c.Seal(KindItemKey, raw)
}

// Open authenticates and decrypts a container. On ErrIntegrity no plaintext
// is returned.
func (c *Codec) Open(kind Kind, container []byte) ([]byte, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("%w: unknown kind %v", ErrFormat, kind)
	}
	if kind == KindItemKey {
		return c.openItemKey(container)
	}

	if len(container) < minContainerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrFormat, len(container))
	}
	if (len(container)-minContainerSize)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", ErrFormat)
	}
	if !bytes.Equal(container[:headerSize], Header) {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if err := c.verify(container); err != nil {
		return nil, err
	}

	length, err := ParseLittleEndian(container[headerSize : headerSize+lengthSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	ivEnd := headerSize + lengthSize + ivSize
	iv := container[headerSize+lengthSize : ivEnd]
	ct := container[ivEnd : len(container)-macSize]

	raw, err := c.decrypt(ct, iv)
	if err != nil {
		return nil, err
	}
	defer Zero(raw)
	if length > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: declared length %d exceeds payload", ErrFormat, length)
	}
	pt, err := Unpad(int(length), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	out := make([]byte, len(pt))
	copy(out, pt)
	return out, nil
}

func (c *Codec) openItemKey(container []byte) ([]byte, error) {
	if len(container) < minItemKeySize || (len(container)-minItemKeySize)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: malformed item key container", ErrFormat)
	}
	if err := c.verify(container); err != nil {
		return nil, err
	}
	return c.decrypt(container[ivSize:len(container)-macSize], container[:ivSize])
}

func (c *Codec) verify(container []byte) error {
	mac := c.keys.HMACKey()
	defer Zero(mac)
	split := len(container) - macSize
	want, err := HMAC(container[:split], mac, 256)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, container[split:]) {
		return ErrIntegrity
	}
	return nil
}

func (c *Codec) decrypt(ct, iv []byte) ([]byte, error) {
	enc := c.keys.EncryptionKey()
	defer Zero(enc)
	return DecryptCBC(ct, enc, iv)
}

// OpenItem opens an item container and returns its UTF-8 text.
func (c *Codec) OpenItem(container []byte) ([]byte, error) {
	pt, err := c.Open(KindItem, container)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(pt) {
		Zero(pt)
		return nil, fmt.Errorf("%w: item is not utf-8 text", ErrFormat)
	}
	return pt, nil
}

// OpenItemKey recovers an item's own key pair.
func (c *Codec) OpenItemKey(container []byte) (*KeyPair, error) {
	raw, err := c.Open(KindItemKey, container)
	if err != nil {
		return nil, err
	}
	defer Zero(raw)
	if len(raw) != 2*KeySize {
		return nil, fmt.Errorf("%w: item key is %d bytes", ErrFormat, len(raw))
	}
	return SplitKeyPair(raw)
}

// OpenProfileKey opens a sealed master or overview seed and derives its key
// pair.
func (c *Codec) OpenProfileKey(container []byte) (*KeyPair, error) {
	seed, err := c.Open(KindProfileKey, container)
	if err != nil {
		return nil, err
	}
	defer Zero(seed)
	return ProfileKeyPair(seed)
}

// OpenBuffer returns the raw plaintext bytes.
func (c *Codec) OpenBuffer(container []byte) ([]byte, error) {
	return c.Open(KindBuffer, container)
}

// ProfileKeyPair derives a key pair from a seed: SHA-512, split in half.
func ProfileKeyPair(seed []byte) (*KeyPair, error) {
	digest, err := Hash(seed, 512)
	if err != nil {
		return nil, err
	}
	defer Zero(digest)
	return SplitKeyPair(digest)
}
