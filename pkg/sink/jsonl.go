// Package sink appends message records to a JSON Lines file.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONL is an append-only writer. Each record is encoded to one line and
// handed to the OS in a single write; there is no fsync.
type JSONL struct {
	mu   sync.Mutex
	path string
	f    *os.File
	buf  bytes.Buffer
	enc  *json.Encoder
}

// Open opens path for appending, creating it and its parent directories
// as needed.
func Open(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	s := &JSONL{path: path, f: f}
	s.enc = json.NewEncoder(&s.buf)
	s.enc.SetEscapeHTML(false)
	return s, nil
}

func (s *JSONL) Path() string { return s.path }

// Append writes v followed by a newline.
func (s *JSONL) Append(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return os.ErrClosed
	}
	s.buf.Reset()
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if _, err := s.f.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
