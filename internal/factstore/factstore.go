// Package factstore holds the durable, append-only fact corpus.
//
// Records are stored one JSON object per line (or per row). Loading is
// tolerant: a record that does not parse is skipped and never aborts the load.
// Appending is strict: any failure to persist is returned to the caller.
package factstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"casebot/internal/domain"
)

// ErrPersist marks a failure to durably write new records.
var ErrPersist = errors.New("persist facts")

// Backend is the durable record store behind the corpus.
type Backend interface {
	// Load returns every parseable record in insertion order.
	// A missing backing resource yields an empty slice and no error.
	Load(ctx context.Context) ([]domain.Fact, error)
	// Append durably writes facts in order and returns how many were written.
	Append(ctx context.Context, facts []domain.Fact) (int, error)
	// Location describes where the records live, for logs.
	Location() string
	Close() error
}

// ParseLine decodes one persisted record. It reports false for blank lines
// and for anything that is not a well-formed fact object.
func ParseLine(line []byte) (domain.Fact, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return domain.Fact{}, false
	}
	var f domain.Fact
	if err := json.Unmarshal(line, &f); err != nil {
		return domain.Fact{}, false
	}
	return f, true
}

// ParseAll keeps the records of lines that parse, in order, and counts the
// non-blank lines that were dropped.
func ParseAll(lines [][]byte) (facts []domain.Fact, skipped int) {
	facts = make([]domain.Fact, 0, len(lines))
	for _, line := range lines {
		f, ok := ParseLine(line)
		if !ok {
			if len(bytes.TrimSpace(line)) > 0 {
				skipped++
			}
			continue
		}
		facts = append(facts, f)
	}
	return facts, skipped
}

// Encode renders a fact as a single persisted line without a trailing newline.
func Encode(f domain.Fact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
