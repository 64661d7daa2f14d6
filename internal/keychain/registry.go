package keychain

import (
	"fmt"
	"regexp"
	"sort"
)

// RegistryEntry is one loaded keychain.
type RegistryEntry struct {
	ID       int
	Path     string
	Keychain *Keychain
}

// Registry is an owned collection of loaded keychains, so that a personal
// keychain and the keychains shared with it can be searched together.
type Registry struct {
	next    int
	entries map[int]RegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]RegistryEntry)}
}

// Add registers k and returns its id. Ids are never reused.
func (r *Registry) Add(k *Keychain, path string) int {
	id := r.next
	r.next++
	r.entries[id] = RegistryEntry{ID: id, Path: path, Keychain: k}
	return id
}

func (r *Registry) Remove(id int) {
	delete(r.entries, id)
}

func (r *Registry) Get(id int) (*Keychain, bool) {
	e, ok := r.entries[id]
	return e.Keychain, ok
}

// List returns the entries ordered by id.
func (r *Registry) List() []RegistryEntry {
	out := make([]RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindItems runs Keychain.FindItems over every unlocked keychain. Locked
// keychains are skipped.
func (r *Registry) FindItems(query string) ([]*Item, error) {
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		return nil, fmt.Errorf("keychain: bad query: %w", err)
	}
	var out []*Item
	for _, e := range r.List() {
		if !e.Keychain.Unlocked() {
			continue
		}
		out = append(out, e.Keychain.findItems(re)...)
	}
	return out, nil
}
