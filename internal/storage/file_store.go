package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cloud-keychain/internal/keychain"
)

const profileFile = "profile.js"

var bandFile = regexp.MustCompile(`^band_[0-9A-F]\.js$`)

// FileStore reads and writes the .cloudkeychain directory layout:
// <root>/<profile>/profile.js plus one band_<X>.js per leading uuid
// character. folders.js and attachment files are left untouched.
type FileStore struct {
	root    string
	profile string
}

func NewFileStore(root, profile string) *FileStore {
	if profile == "" {
		profile = keychain.DefaultProfileName
	}
	return &FileStore{root: root, profile: profile}
}

func (f *FileStore) Dir() string { return filepath.Join(f.root, f.profile) }

func (f *FileStore) LoadProfile(_ context.Context) (keychain.Profile, error) {
	b, err := os.ReadFile(filepath.Join(f.Dir(), profileFile))
	if os.IsNotExist(err) {
		return keychain.Profile{}, ErrNotFound
	}
	if err != nil {
		return keychain.Profile{}, err
	}
	return DecodeProfile(b)
}

func (f *FileStore) SaveProfile(_ context.Context, p keychain.Profile) error {
	b, err := EncodeProfile(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir(), 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.Dir(), profileFile), b, 0600)
}

func (f *FileStore) bands() ([]string, error) {
	entries, err := os.ReadDir(f.Dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && bandFile.MatchString(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *FileStore) LoadItems(_ context.Context) ([]keychain.ItemRecord, error) {
	names, err := f.bands()
	if err != nil {
		return nil, err
	}
	var out []keychain.ItemRecord
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(f.Dir(), name))
		if err != nil {
			return nil, err
		}
		records, err := DecodeBand(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, records...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (f *FileStore) SaveItems(_ context.Context, items []keychain.ItemRecord) error {
	groups := map[string][]keychain.ItemRecord{}
	for _, r := range items {
		name, err := bandName(r.UUID)
		if err != nil {
			return err
		}
		groups[name] = append(groups[name], r)
	}
	if err := os.MkdirAll(f.Dir(), 0700); err != nil {
		return err
	}
	for name, records := range groups {
		b, err := EncodeBand(records)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(f.Dir(), name), b, 0600); err != nil {
			return err
		}
	}

	existing, err := f.bands()
	if err != nil {
		return err
	}
	for _, name := range existing {
		if _, ok := groups[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(f.Dir(), name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func bandName(uuid string) (string, error) {
	if uuid == "" {
		return "", fmt.Errorf("%w: item without uuid", ErrMalformed)
	}
	name := "band_" + strings.ToUpper(uuid[:1]) + ".js"
	if !bandFile.MatchString(name) {
		return "", fmt.Errorf("%w: uuid %q does not start with a hex digit", ErrMalformed, uuid)
	}
	return name, nil
}
