package keychain

import (
	"encoding/json"
)

// Field is one entry of an item's details.
type Field struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	Designation string `json:"designation,omitempty"`
}

// Details is the decrypted details section. Keys other than fields and
// notesPlain are kept in Extra and written back unchanged.
type Details struct {
	Fields     []Field
	NotesPlain string
	Extra      map[string]json.RawMessage
}

// Field returns the value of the first field with the given designation.
func (d *Details) Field(designation string) (string, bool) {
	for _, f := range d.Fields {
		if f.Designation == designation {
			return f.Value, true
		}
	}
	return "", false
}

func (d *Details) UnmarshalJSON(b []byte) error {
	obj, err := splitObject(b)
	if err != nil {
		return err
	}
	*d = Details{}
	if err := takeKey(obj, "fields", &d.Fields); err != nil {
		return err
	}
	if err := takeKey(obj, "notesPlain", &d.NotesPlain); err != nil {
		return err
	}
	d.Extra = obj
	return nil
}

func (d Details) MarshalJSON() ([]byte, error) {
	obj := mergeExtra(d.Extra)
	if d.Fields != nil {
		obj["fields"] = d.Fields
	}
	if d.NotesPlain != "" || d.Fields != nil {
		obj["notesPlain"] = d.NotesPlain
	}
	return json.Marshal(obj)
}

type URL struct {
	Label string `json:"l"`
	URL   string `json:"u"`
}

// Overview is the decrypted overview section, readable with the vault-wide
// overview key. Unknown keys are kept in Extra.
type Overview struct {
	Title string
	AInfo string
	URL   string
	URLs  []URL
	Tags  []string
	Extra map[string]json.RawMessage
}

func (o *Overview) UnmarshalJSON(b []byte) error {
	obj, err := splitObject(b)
	if err != nil {
		return err
	}
	*o = Overview{}
	for key, dst := range map[string]interface{}{
		"title": &o.Title,
		"ainfo": &o.AInfo,
		"url":   &o.URL,
		"URLS":  &o.URLs,
		"tags":  &o.Tags,
	} {
		if err := takeKey(obj, key, dst); err != nil {
			return err
		}
	}
	o.Extra = obj
	return nil
}

func (o Overview) MarshalJSON() ([]byte, error) {
	obj := mergeExtra(o.Extra)
	obj["title"] = o.Title
	if o.AInfo != "" {
		obj["ainfo"] = o.AInfo
	}
	if o.URL != "" {
		obj["url"] = o.URL
	}
	if o.URLs != nil {
		obj["URLS"] = o.URLs
	}
	if o.Tags != nil {
		obj["tags"] = o.Tags
	}
	return json.Marshal(obj)
}

func splitObject(b []byte) (map[string]json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// takeKey decodes obj[key] into dst and removes it from obj.
func takeKey(obj map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	delete(obj, key)
	if string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func mergeExtra(extra map[string]json.RawMessage) map[string]interface{} {
	obj := make(map[string]interface{}, len(extra)+5)
	for k, v := range extra {
		obj[k] = v
	}
	return obj
}
