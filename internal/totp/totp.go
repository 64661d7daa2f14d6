package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultStep   = 30 * time.Second
	DefaultDigits = 6
)

var ErrBadSecret = errors.New("totp: bad secret")

// Params describes one TOTP generator.
type Params struct {
	Secret    []byte
	Digits    int
	Step      time.Duration
	Algorithm string // SHA1, SHA256 or SHA512
}

// Parse accepts an otpauth://totp URI or a bare base32 secret.
func Parse(s string) (Params, error) {
	s = strings.TrimSpace(s)
	p := Params{Digits: DefaultDigits, Step: DefaultStep, Algorithm: "SHA1"}
	if !strings.HasPrefix(strings.ToLower(s), "otpauth://") {
		secret, err := decodeSecret(s)
		if err != nil {
			return p, err
		}
		p.Secret = secret
		return p, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrBadSecret, err)
	}
	if !strings.EqualFold(u.Host, "totp") {
		return p, fmt.Errorf("%w: unsupported otp type %q", ErrBadSecret, u.Host)
	}
	q := u.Query()
	if p.Secret, err = decodeSecret(q.Get("secret")); err != nil {
		return p, err
	}
	if v := q.Get("digits"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 6 || n > 8 {
			return p, fmt.Errorf("%w: digits %q", ErrBadSecret, v)
		}
		p.Digits = n
	}
	if v := q.Get("period"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("%w: period %q", ErrBadSecret, v)
		}
		p.Step = time.Duration(n) * time.Second
	}
	if v := q.Get("algorithm"); v != "" {
		p.Algorithm = strings.ToUpper(v)
		if p.hash() == nil {
			return p, fmt.Errorf("%w: algorithm %q", ErrBadSecret, v)
		}
	}
	return p, nil
}

func (p Params) hash() func() hash.Hash {
	switch p.Algorithm {
	case "", "SHA1":
		return sha1.New
	case "SHA256":
		return sha256.New
	case "SHA512":
		return sha512.New
	}
	return nil
}

// Code returns the code valid at when and how long it stays valid.
func (p Params) Code(when time.Time) (string, time.Duration) {
	step := int64(p.Step / time.Second)
	if step <= 0 {
		step = 30
	}
	unix := when.Unix()
	counter := unix / step
	left := time.Duration(step-unix%step) * time.Second
	return p.computeCode(uint64(counter)), left
}

// Verify accepts a code from the current step or either neighbour.
func (p Params) Verify(code string, when time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != p.Digits {
		return false
	}
	step := int64(p.Step / time.Second)
	if step <= 0 {
		step = 30
	}
	counter := when.Unix() / step
	for i := int64(-1); i <= 1; i++ {
		cur := counter + i
		if cur < 0 {
			continue
		}
		if hmac.Equal([]byte(p.computeCode(uint64(cur))), []byte(code)) {
			return true
		}
	}
	return false
}

func (p Params) computeCode(counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(p.hash(), p.Secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	trunc := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF
	mod := uint32(1)
	for i := 0; i < p.Digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", p.Digits, trunc%mod)
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	secret = strings.TrimRight(secret, "=")
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadSecret)
	}
	b, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSecret, err)
	}
	return b, nil
}
