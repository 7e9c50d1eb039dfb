// Package jsonl stores facts in an append-only JSON Lines file.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"casebot/internal/domain"
	"casebot/internal/factstore"
	"casebot/internal/logger"
)

// Backend is a JSON Lines file holding one fact per line.
type Backend struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

var _ factstore.Backend = (*Backend)(nil)

// New returns a backend for path. The file is created on first append.
func New(path string, log *logger.Logger) *Backend {
	if log == nil {
		log = logger.Discard()
	}
	return &Backend{path: path, log: log.WithField("path", path)}
}

func (b *Backend) Location() string { return b.path }

func (b *Backend) Close() error { return nil }

// Load reads every line of the file. Malformed lines are skipped.
func (b *Backend) Load(ctx context.Context) ([]domain.Fact, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Fact{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", b.path, err)
	}
	defer f.Close()

	var lines [][]byte
	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", b.path, err)
		}
	}
	facts, skipped := factstore.ParseAll(lines)
	if skipped > 0 {
		b.log.WithField("skipped", skipped).Debug("skipped malformed fact lines")
	}
	return facts, nil
}

// Append writes facts as one block at the end of the file and syncs it to disk.
func (b *Backend) Append(ctx context.Context, facts []domain.Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	var buf bytes.Buffer
	for _, fact := range facts {
		line, err := factstore.Encode(fact)
		if err != nil {
			return 0, fmt.Errorf("%w: encode: %v", factstore.ErrPersist, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %v", factstore.ErrPersist, err)
	}
	f, err := os.OpenFile(b.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", factstore.ErrPersist, err)
	}
	defer f.Close()

	needsNewline, err := endsWithoutNewline(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", factstore.ErrPersist, err)
	}
	if needsNewline {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return 0, fmt.Errorf("%w: %v", factstore.ErrPersist, err)
		}
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("%w: %v", factstore.ErrPersist, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: %v", factstore.ErrPersist, err)
	}
	return len(facts), nil
}

// endsWithoutNewline reports whether a non-empty file lacks a trailing newline,
// so a new record would otherwise be glued onto the last line.
func endsWithoutNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
