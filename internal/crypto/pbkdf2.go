package crypto

import (
	"crypto/hmac"
	"encoding/binary"
	"errors"
)

var ErrIterations = errors.New("crypto: iterations must be at least 1")

// PBKDF2 derives exactly one PBKDF2 block (block index 1) using HMAC-SHA256
// or HMAC-SHA512. The output is bits/8 bytes long, i.e. always one digest.
// It does not generalise to longer outputs.
func PBKDF2(password, salt []byte, iterations, bits int) ([]byte, error) {
	if iterations < 1 {
		return nil, ErrIterations
	}
	h, err := hashFunc(bits)
	if err != nil {
		return nil, err
	}
	prf := hmac.New(h, password)

	block := make([]byte, len(salt)+4)
	copy(block, salt)
	binary.BigEndian.PutUint32(block[len(salt):], 1)

	prf.Write(block)
	u := prf.Sum(nil)
	acc := make([]byte, len(u))
	copy(acc, u)

	for i := 2; i <= iterations; i++ {
		prf.Reset()
		prf.Write(u)
		u = prf.Sum(u[:0])
		for j := range acc {
			acc[j] ^= u[j]
		}
	}
	Zero(u)
	return acc, nil
}
