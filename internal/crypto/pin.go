package crypto

import (
	"os"
	"sync"
	"unsafe"
)

// Key buffers are pinned best-effort: mlock failures (RLIMIT_MEMLOCK) are
// ignored by callers. Small key arrays from different KeyPairs can share a
// page, so pins are counted per page and a page is only unlocked once no
// pinned buffer touches it.
var pins = newPinner(uintptr(os.Getpagesize()), mlock, munlock)

func lockMemory(b []byte) error   { return pins.pin(b) }
func unlockMemory(b []byte) error { return pins.unpin(b) }

type pinner struct {
	mu       sync.Mutex
	pageSize uintptr
	refs     map[uintptr]int
	lock     func([]byte) error
	unlock   func([]byte) error
}

func newPinner(pageSize uintptr, lock, unlock func([]byte) error) *pinner {
	return &pinner{pageSize: pageSize, refs: make(map[uintptr]int), lock: lock, unlock: unlock}
}

// pages returns the start addresses of the pages b spans.
func (p *pinner) pages(b []byte) []uintptr {
	start := uintptr(unsafe.Pointer(&b[0]))
	end := start + uintptr(len(b)) - 1
	var out []uintptr
	for pg := start &^ (p.pageSize - 1); pg <= end; pg += p.pageSize {
		out = append(out, pg)
	}
	return out
}

func (p *pinner) pin(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pages := p.pages(b)
	fresh := false
	for _, pg := range pages {
		if p.refs[pg] == 0 {
			fresh = true
		}
	}
	if fresh {
		if err := p.lock(b); err != nil {
			return err
		}
	}
	for _, pg := range pages {
		p.refs[pg]++
	}
	return nil
}

// unpin drops b's pins. The pages are unlocked only when none of them is
// still held by another buffer; unpinning twice is a no-op.
func (p *pinner) unpin(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pages := p.pages(b)
	held, shared := false, false
	for _, pg := range pages {
		n, ok := p.refs[pg]
		if !ok {
			continue
		}
		held = true
		if n > 1 {
			p.refs[pg] = n - 1
			shared = true
		} else {
			delete(p.refs, pg)
		}
	}
	if !held || shared {
		return nil
	}
	return p.unlock(b)
}
