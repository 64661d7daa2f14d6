package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cloud-keychain/internal/keychain"
)

const (
	profilePrefix = "var profile="
	profileSuffix = ";"
	bandPrefix    = "ld("
	bandSuffix    = ");"
)

// EncodeProfile renders profile.js.
func EncodeProfile(p keychain.Profile) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return wrap(profilePrefix, b, profileSuffix), nil
}

// DecodeProfile parses profile.js.
func DecodeProfile(data []byte) (keychain.Profile, error) {
	var p keychain.Profile
	body, err := unwrap(profilePrefix, data, profileSuffix)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, fmt.Errorf("%w: profile: %v", ErrMalformed, err)
	}
	return p, nil
}

// EncodeBand renders a band file: an object of records keyed by uuid.
func EncodeBand(items []keychain.ItemRecord) ([]byte, error) {
	band := make(map[string]keychain.ItemRecord, len(items))
	for _, r := range items {
		band[r.UUID] = r
	}
	b, err := json.MarshalIndent(band, "", "  ")
	if err != nil {
		return nil, err
	}
	return wrap(bandPrefix, b, bandSuffix), nil
}

// DecodeBand parses a band file. Records come back in no particular order.
func DecodeBand(data []byte) ([]keychain.ItemRecord, error) {
	body, err := unwrap(bandPrefix, data, bandSuffix)
	if err != nil {
		return nil, err
	}
	var band map[string]keychain.ItemRecord
	if err := json.Unmarshal(body, &band); err != nil {
		return nil, fmt.Errorf("%w: band: %v", ErrMalformed, err)
	}
	out := make([]keychain.ItemRecord, 0, len(band))
	for id, r := range band {
		if r.UUID == "" {
			r.UUID = id
		}
		out = append(out, r)
	}
	return out, nil
}

func wrap(prefix string, body []byte, suffix string) []byte {
	out := make([]byte, 0, len(prefix)+len(body)+len(suffix))
	out = append(out, prefix...)
	out = append(out, body...)
	return append(out, suffix...)
}

func unwrap(prefix string, data []byte, suffix string) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte(prefix)) || !bytes.HasSuffix(data, []byte(suffix)) ||
		len(data) < len(prefix)+len(suffix) {
		return nil, fmt.Errorf("%w: expected %s...%s", ErrMalformed, prefix, suffix)
	}
	return data[len(prefix) : len(data)-len(suffix)], nil
}
