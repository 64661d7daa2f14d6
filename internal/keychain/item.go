package keychain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	cr "cloud-keychain/internal/crypto"
)

// Section names one independently encrypted part of an item.
type Section uint8

const (
	SectionKeys Section = 1 << iota
	SectionDetails
	SectionOverview

	SectionAll = SectionKeys | SectionDetails | SectionOverview
)

func (s Section) String() string {
	var parts []string
	if s&SectionKeys != 0 {
		parts = append(parts, "keys")
	}
	if s&SectionDetails != 0 {
		parts = append(parts, "details")
	}
	if s&SectionOverview != 0 {
		parts = append(parts, "overview")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

type LockState uint8

const (
	Locked LockState = iota
	Unlocked
)

type sectionState struct {
	keys     LockState
	details  LockState
	overview LockState
}

func (s *sectionState) set(sec Section, st LockState) {
	switch sec {
	case SectionKeys:
		s.keys = st
	case SectionDetails:
		s.details = st
	case SectionOverview:
		s.overview = st
	}
}

func (s sectionState) get(sec Section) LockState {
	switch sec {
	case SectionKeys:
		return s.keys
	case SectionDetails:
		return s.details
	case SectionOverview:
		return s.overview
	}
	return Locked
}

type sealed struct {
	keys     []byte
	details  []byte
	overview []byte
}

// Login is the input for a new login item.
type Login struct {
	Title    string
	Username string
	Password string
	URL      string
	Notes    string
	// OTP is an otpauth:// URI or base32 TOTP secret, stored concealed.
	OTP string
}

const CategoryLogin = "001"

var categoryNames = map[string]string{
	"001": "Login",
	"002": "Credit Card",
	"003": "Secure Note",
	"004": "Identity",
	"005": "Generated Password",
	"100": "Software License",
	"101": "Bank Account",
	"102": "Database",
	"103": "Driver's License",
	"104": "Outdoor License",
	"105": "Membership",
	"106": "Passport",
	"107": "Reward Program",
	"108": "Social Security Number",
	"109": "Wireless Router",
	"110": "Server",
	"111": "Email Account",
}

// Item is one keychain record with three sections: keys, details and
// overview. Each section is locked or unlocked on its own, except that
// opening details needs the item keys.
type Item struct {
	keychain *Keychain

	uuid     string
	category string
	created  int64
	updated  int64
	folder   string
	fave     int64
	trashed  bool
	tx       int64
	hmac     []byte

	encrypted sealed

	keys     *cr.KeyPair
	details  *Details
	overview *Overview
	state    sectionState
	dirty    Section
}

func newLoginItem(k *Keychain, l Login) (*Item, error) {
	id, err := newUUID()
	if err != nil {
		return nil, err
	}
	keys, err := cr.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	ts := now().Unix()
	it := &Item{
		keychain: k,
		uuid:     id,
		category: CategoryLogin,
		created:  ts,
		updated:  ts,
		keys:     keys,
		overview: &Overview{
			Title: l.Title,
			AInfo: l.Username,
			URL:   l.URL,
			URLs:  []URL{{Label: "website", URL: l.URL}},
		},
		details: &Details{
			Fields: []Field{
				{Type: "T", Name: "username", Value: l.Username, Designation: "username"},
				{Type: "P", Name: "password", Value: l.Password, Designation: "password"},
			},
			NotesPlain: l.Notes,
		},
	}
	if l.OTP != "" {
		it.details.Fields = append(it.details.Fields,
			Field{Type: "P", Name: "one-time password", Value: l.OTP, Designation: "totp"})
	}
	it.state = sectionState{keys: Unlocked, details: Unlocked, overview: Unlocked}
	if err := it.Encrypt(SectionAll); err != nil {
		it.Lock(SectionAll)
		return nil, err
	}
	return it, nil
}

// LoadItem builds a locked item from its persisted record.
func LoadItem(k *Keychain, r ItemRecord) (*Item, error) {
	if r.UUID == "" {
		return nil, fmt.Errorf("%w: item without uuid", cr.ErrFormat)
	}
	it := &Item{
		keychain: k,
		uuid:     r.UUID,
		category: r.Category,
		created:  r.Created,
		updated:  r.Updated,
		folder:   r.Folder,
		fave:     r.Fave,
		trashed:  r.Trashed,
		tx:       r.Tx,
	}
	var err error
	if it.encrypted.keys, err = cr.DecodeBase64(r.K); err != nil {
		return nil, fmt.Errorf("%w: item %s keys: %v", cr.ErrFormat, r.UUID, err)
	}
	if it.encrypted.details, err = cr.DecodeBase64(r.D); err != nil {
		return nil, fmt.Errorf("%w: item %s details: %v", cr.ErrFormat, r.UUID, err)
	}
	if it.encrypted.overview, err = cr.DecodeBase64(r.O); err != nil {
		return nil, fmt.Errorf("%w: item %s overview: %v", cr.ErrFormat, r.UUID, err)
	}
	if r.HMAC != "" {
		if it.hmac, err = cr.DecodeBase64(r.HMAC); err != nil {
			return nil, fmt.Errorf("%w: item %s hmac: %v", cr.ErrFormat, r.UUID, err)
		}
	}
	return it, nil
}

// Record exports the item's encrypted form. Plaintext changes must be
// encrypted first.
func (it *Item) Record() (ItemRecord, error) {
	if it.dirty != 0 {
		return ItemRecord{}, fmt.Errorf("%w: %v", ErrUnsealed, it.dirty)
	}
	r := ItemRecord{
		Category: it.category,
		Created:  it.created,
		D:        cr.EncodeBase64(it.encrypted.details),
		Fave:     it.fave,
		Folder:   it.folder,
		K:        cr.EncodeBase64(it.encrypted.keys),
		O:        cr.EncodeBase64(it.encrypted.overview),
		Trashed:  it.trashed,
		Tx:       it.tx,
		Updated:  it.updated,
		UUID:     it.uuid,
	}
	if it.hmac != nil {
		r.HMAC = cr.EncodeBase64(it.hmac)
	}
	return r, nil
}

func (it *Item) UUID() string     { return it.uuid }
func (it *Item) Category() string { return it.category }
func (it *Item) Created() int64   { return it.created }
func (it *Item) Updated() int64   { return it.updated }
func (it *Item) Folder() string   { return it.folder }
func (it *Item) Trashed() bool    { return it.trashed }

// CategoryName returns the display name of the item's category, or "" for
// an unknown code.
func (it *Item) CategoryName() string { return categoryNames[it.category] }

// Unlocked reports whether every named section is unlocked.
func (it *Item) Unlocked(s Section) bool {
	for _, sec := range []Section{SectionKeys, SectionDetails, SectionOverview} {
		if s&sec != 0 && it.state.get(sec) != Unlocked {
			return false
		}
	}
	return true
}

// Unlock decrypts the named sections. Details pulls in the item keys first.
// Already unlocked sections are left alone.
func (it *Item) Unlock(s Section) error {
	if s&SectionKeys != 0 {
		if err := it.unlockKeys(); err != nil {
			return err
		}
	}
	if s&SectionDetails != 0 {
		if err := it.unlockDetails(); err != nil {
			return err
		}
	}
	if s&SectionOverview != 0 {
		if err := it.unlockOverview(); err != nil {
			return err
		}
	}
	return nil
}

func (it *Item) unlockKeys() error {
	if it.state.keys == Unlocked {
		return nil
	}
	master := it.keychain.master
	if master == nil {
		return ErrLocked
	}
	keys, err := cr.NewCodec(master).OpenItemKey(it.encrypted.keys)
	if err != nil {
		return fmt.Errorf("keychain: item %s keys: %w", it.uuid, err)
	}
	it.keys = keys
	it.state.keys = Unlocked
	return nil
}

func (it *Item) unlockDetails() error {
	if it.state.details == Unlocked {
		return nil
	}
	if !it.keychain.Unlocked() {
		return ErrLocked
	}
	if err := it.unlockKeys(); err != nil {
		return fmt.Errorf("%w: %w", ErrDependency, err)
	}
	pt, err := cr.NewCodec(it.keys).OpenItem(it.encrypted.details)
	if err != nil {
		return fmt.Errorf("keychain: item %s details: %w", it.uuid, err)
	}
	defer cr.Zero(pt)
	d := &Details{}
	if err := json.Unmarshal(pt, d); err != nil {
		return fmt.Errorf("%w: item %s details are not json", cr.ErrFormat, it.uuid)
	}
	it.details = d
	it.state.details = Unlocked
	return nil
}

func (it *Item) unlockOverview() error {
	if it.state.overview == Unlocked {
		return nil
	}
	overview := it.keychain.overview
	if overview == nil {
		return ErrLocked
	}
	pt, err := cr.NewCodec(overview).OpenItem(it.encrypted.overview)
	if err != nil {
		return fmt.Errorf("keychain: item %s overview: %w", it.uuid, err)
	}
	defer cr.Zero(pt)
	o := &Overview{}
	if err := json.Unmarshal(pt, o); err != nil {
		return fmt.Errorf("%w: item %s overview is not json", cr.ErrFormat, it.uuid)
	}
	it.overview = o
	it.state.overview = Unlocked
	return nil
}

// Encrypt seals the plaintext of the named sections, replacing their
// encrypted form.
func (it *Item) Encrypt(s Section) error {
	if s&SectionKeys != 0 {
		if err := it.encryptKeys(); err != nil {
			return err
		}
	}
	if s&SectionDetails != 0 {
		if err := it.encryptDetails(); err != nil {
			return err
		}
	}
	if s&SectionOverview != 0 {
		if err := it.encryptOverview(); err != nil {
			return err
		}
	}
	return nil
}

func (it *Item) encryptKeys() error {
	if it.state.keys != Unlocked {
		return fmt.Errorf("%w: keys", ErrSectionLocked)
	}
	master := it.keychain.master
	if master == nil {
		return ErrLocked
	}
	ct, err := cr.NewCodec(master).SealItemKey(it.keys)
	if err != nil {
		return err
	}
	it.encrypted.keys = ct
	it.dirty &^= SectionKeys
	return nil
}

func (it *Item) encryptDetails() error {
	if it.state.details != Unlocked {
		return fmt.Errorf("%w: details", ErrSectionLocked)
	}
	if err := it.unlockKeys(); err != nil {
		return fmt.Errorf("%w: %w", ErrDependency, err)
	}
	pt, err := json.Marshal(it.details)
	if err != nil {
		return err
	}
	defer cr.Zero(pt)
	ct, err := cr.NewCodec(it.keys).Seal(cr.KindItem, pt)
	if err != nil {
		return err
	}
	it.encrypted.details = ct
	it.dirty &^= SectionDetails
	return nil
}

func (it *Item) encryptOverview() error {
	if it.state.overview != Unlocked {
		return fmt.Errorf("%w: overview", ErrSectionLocked)
	}
	overview := it.keychain.overview
	if overview == nil {
		return ErrLocked
	}
	pt, err := json.Marshal(it.overview)
	if err != nil {
		return err
	}
	ct, err := cr.NewCodec(overview).Seal(cr.KindItem, pt)
	if err != nil {
		return err
	}
	it.encrypted.overview = ct
	it.dirty &^= SectionOverview
	return nil
}

// Lock drops the plaintext of the named sections. Unencrypted changes to
// those sections are lost; the encrypted form is kept.
func (it *Item) Lock(s Section) {
	if s&SectionKeys != 0 {
		it.keys.Zero()
		it.keys = nil
		it.state.set(SectionKeys, Locked)
	}
	if s&SectionDetails != 0 {
		it.details = nil
		it.state.set(SectionDetails, Locked)
		it.dirty &^= SectionDetails
	}
	if s&SectionOverview != 0 {
		it.overview = nil
		it.state.set(SectionOverview, Locked)
		it.dirty &^= SectionOverview
	}
}

// Details returns the decrypted details. The caller must not modify the
// result; use SetDetails.
func (it *Item) Details() (*Details, error) {
	if it.state.details != Unlocked {
		return nil, fmt.Errorf("%w: details", ErrSectionLocked)
	}
	return it.details, nil
}

// Overview returns the decrypted overview.
func (it *Item) Overview() (*Overview, error) {
	if it.state.overview != Unlocked {
		return nil, fmt.Errorf("%w: overview", ErrSectionLocked)
	}
	return it.overview, nil
}

// SetDetails replaces the details plaintext. Call Encrypt before Record.
func (it *Item) SetDetails(d *Details) {
	it.details = d
	it.state.details = Unlocked
	it.dirty |= SectionDetails
	it.touch()
}

// SetOverview replaces the overview plaintext. Call Encrypt before Record.
func (it *Item) SetOverview(o *Overview) {
	it.overview = o
	it.state.overview = Unlocked
	it.dirty |= SectionOverview
	it.touch()
}

// SetTrashed moves the item to or from the trash.
func (it *Item) SetTrashed(trashed bool) {
	it.trashed = trashed
	it.touch()
}

func (it *Item) touch() { it.updated = now().Unix() }

// Title is the overview title, or "" while the overview is locked.
func (it *Item) Title() string {
	if it.state.overview != Unlocked || it.overview == nil {
		return ""
	}
	return it.overview.Title
}

// Match reports whether re matches the overview title. Locked items never
// match.
func (it *Item) Match(re *regexp.Regexp) bool {
	if it.state.overview != Unlocked || it.overview == nil {
		return false
	}
	return re.MatchString(it.overview.Title)
}
