package crypto

import (
	"crypto/rand"
	"testing"
)

func benchmarkSeal(b *testing.B, size int) {
	c := newTestCodec(b)
	pt := make([]byte, size)
	rand.Read(pt)
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Seal(KindItem, pt); err != nil {
			b.Fatalf("seal failed: %v", err)
		}
	}
}

func benchmarkOpen(b *testing.B, size int) {
	c := newTestCodec(b)
	pt := make([]byte, size)
	rand.Read(pt)
	ciphertext, err := c.Seal(KindItem, pt)
	if err != nil {
		b.Fatalf("seal failed: %v", err)
	}
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Open(KindItem, ciphertext); err != nil {
			b.Fatalf("open failed: %v", err)
		}
	}
}

func BenchmarkOpdataSeal1KB(b *testing.B)  { benchmarkSeal(b, 1024) }
func BenchmarkOpdataOpen1KB(b *testing.B)  { benchmarkOpen(b, 1024) }
func BenchmarkOpdataSeal16KB(b *testing.B) { benchmarkSeal(b, 16*1024) }
func BenchmarkOpdataOpen16KB(b *testing.B) { benchmarkOpen(b, 16*1024) }
