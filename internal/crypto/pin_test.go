package crypto

import "testing"

type pinCalls struct{ locks, unlocks int }

func (c *pinCalls) lock([]byte) error   { c.locks++; return nil }
func (c *pinCalls) unlock([]byte) error { c.unlocks++; return nil }

func TestPinnerSharedPage(t *testing.T) {
	c := &pinCalls{}
	// One huge page so both buffers share it.
	p := newPinner(1<<30, c.lock, c.unlock)
	buf := make([]byte, 128)
	a, b := buf[0:32], buf[64:96]

	if err := p.pin(a); err != nil {
		t.Fatal(err)
	}
	if err := p.pin(b); err != nil {
		t.Fatal(err)
	}
	if c.locks != 1 {
		t.Fatalf("locks = %d, want 1", c.locks)
	}

	if err := p.unpin(a); err != nil {
		t.Fatal(err)
	}
	if c.unlocks != 0 {
		t.Fatal("page unlocked while b still pinned")
	}
	if err := p.unpin(b); err != nil {
		t.Fatal(err)
	}
	if c.unlocks != 1 {
		t.Fatalf("unlocks = %d, want 1", c.unlocks)
	}
	if len(p.refs) != 0 {
		t.Fatalf("refs leaked: %v", p.refs)
	}

	if err := p.pin(a); err != nil {
		t.Fatal(err)
	}
	if c.locks != 2 {
		t.Fatal("repinning a released page should lock again")
	}
}

func TestPinnerSpansPages(t *testing.T) {
	p := newPinner(16, func([]byte) error { return nil }, func([]byte) error { return nil })
	buf := make([]byte, 64)
	if got := len(p.pages(buf[0:40])); got < 3 || got > 4 {
		t.Fatalf("40 bytes over 16-byte pages spans %d pages", got)
	}
	if got := len(p.pages(buf[0:1])); got != 1 {
		t.Fatalf("1 byte spans %d pages", got)
	}
}

func TestPinnerEmpty(t *testing.T) {
	c := &pinCalls{}
	p := newPinner(4096, c.lock, c.unlock)
	if err := p.pin(nil); err != nil || c.locks != 0 {
		t.Fatal("empty buffer should be ignored")
	}
	if err := p.unpin(nil); err != nil || c.unlocks != 0 {
		t.Fatal("empty buffer should be ignored")
	}
}

func TestKeyPairZeroKeepsOtherPairPinned(t *testing.T) {
	c := &pinCalls{}
	saved := pins
	pins = newPinner(1<<30, c.lock, c.unlock)
	defer func() { pins = saved }()

	master, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	item, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	item.Zero()
	if c.unlocks != 0 {
		t.Fatal("zeroing one pair unlocked memory still held by another")
	}
	master.Zero()
	if c.unlocks != 1 {
		t.Fatalf("unlocks = %d, want 1", c.unlocks)
	}
	item.Zero()
	if c.unlocks != 1 {
		t.Fatal("second Zero should not unlock again")
	}
}
