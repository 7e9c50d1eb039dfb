package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// Status is the confidence tag carried by a fact.
type Status string

const (
	StatusSecured     Status = "SECURED"
	StatusUnconfirmed Status = "UNCONFIRMED"
)

// Known reports whether s is one of the recognized confidence labels.
func (s Status) Known() bool {
	return s == StatusSecured || s == StatusUnconfirmed
}

// Fact is a single unit of knowledge in the corpus.
// Keys the system does not interpret are kept in Extra and written back unchanged.
type Fact struct {
	Text    string
	Date    string
	Status  Status
	Sources []string
	Extra   map[string]json.RawMessage
}

// Canonical is the text handed to the embedder for this fact.
func (f Fact) Canonical() string {
	return string(f.Status) + " | " + f.Date + " | " + f.Text
}

var errNotObject = errors.New("fact record must be a JSON object")

var knownKeys = map[string]struct{}{"text": {}, "date": {}, "status": {}, "sources": {}}

// UnmarshalJSON decodes a fact from a JSON object, keeping unknown keys in Extra.
func (f *Fact) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotObject
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	var out Fact
	if v, ok := raw["text"]; ok {
		if err := decodeOptional(v, &out.Text); err != nil {
			return err
		}
	}
	if v, ok := raw["date"]; ok {
		if err := decodeOptional(v, &out.Date); err != nil {
			return err
		}
	}
	if v, ok := raw["status"]; ok {
		var s string
		if err := decodeOptional(v, &s); err != nil {
			return err
		}
		out.Status = Status(s)
	}
	if v, ok := raw["sources"]; ok {
		if err := decodeOptional(v, &out.Sources); err != nil {
			return err
		}
	}
	for k, v := range raw {
		if _, ok := knownKeys[k]; ok {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = append(json.RawMessage(nil), v...)
	}
	*f = out
	return nil
}

// decodeOptional treats an explicit JSON null as the zero value.
func decodeOptional(v json.RawMessage, dst any) error {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil
	}
	return json.Unmarshal(v, dst)
}

// MarshalJSON encodes the fact as a flat JSON object with keys in sorted order.
func (f Fact) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(f.Extra)+4)
	for k, v := range f.Extra {
		fields[k] = v
	}
	put := func(key string, v any) error {
		b, err := marshalNoEscape(v)
		if err != nil {
			return err
		}
		fields[key] = b
		return nil
	}
	sources := f.Sources
	if sources == nil {
		sources = []string{}
	}
	if err := put("text", f.Text); err != nil {
		return nil, err
	}
	if err := put("date", f.Date); err != nil {
		return nil, err
	}
	if err := put("status", string(f.Status)); err != nil {
		return nil, err
	}
	if err := put("sources", sources); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Hit is a fact paired with its similarity to a query.
type Hit struct {
	Score float64 `json:"score"`
	Row   int     `json:"row"`
	Fact  Fact    `json:"fact"`
}
