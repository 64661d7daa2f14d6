package storage

import (
	"context"
	"errors"
	"fmt"

	"cloud-keychain/internal/keychain"
)

var (
	ErrNotFound  = errors.New("storage: profile not found")
	ErrMalformed = errors.New("storage: malformed keychain file")
)

// Store persists one keychain profile and its item records. Stores only
// move bytes; they never see plaintext.
type Store interface {
	LoadProfile(ctx context.Context) (keychain.Profile, error)
	SaveProfile(ctx context.Context, p keychain.Profile) error
	LoadItems(ctx context.Context) ([]keychain.ItemRecord, error)
	// SaveItems replaces the stored item set with items.
	SaveItems(ctx context.Context, items []keychain.ItemRecord) error
}

// Open loads a locked keychain and its items from s.
func Open(ctx context.Context, s Store, opts keychain.Options) (*keychain.Keychain, error) {
	p, err := s.LoadProfile(ctx)
	if err != nil {
		return nil, err
	}
	k, err := keychain.Load(p, opts)
	if err != nil {
		return nil, err
	}
	records, err := s.LoadItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if _, err := k.AddRecord(r); err != nil {
			return nil, fmt.Errorf("storage: item %s: %w", r.UUID, err)
		}
	}
	return k, nil
}

// Save writes the keychain's profile and every item record to s.
func Save(ctx context.Context, s Store, k *keychain.Keychain) error {
	records, err := k.Records()
	if err != nil {
		return err
	}
	if err := s.SaveProfile(ctx, k.Profile()); err != nil {
		return err
	}
	return s.SaveItems(ctx, records)
}
