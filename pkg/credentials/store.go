// Package credentials persists the session provider's credentials in a
// directory: creds.json holds the opaque credential blob and every signal
// key lives in its own <name>.json file next to it.
//
// Save is called for every credentials update and must finish before the
// provider is allowed to continue, so writes are atomic (temp file and
// rename) and safe to repeat.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const credsFile = "creds.json"

// Identity is the account the credentials are paired with.
type Identity struct {
	ID         string
	Name       string
	Registered bool
}

// AuthState is what a provider needs to resume a session.
type AuthState struct {
	Creds    json.RawMessage
	Keys     map[string]json.RawMessage
	Identity Identity
}

// Paired reports whether the credentials belong to a linked account.
func (a *AuthState) Paired() bool {
	return a != nil && a.Identity.ID != ""
}

// Store reads and writes one credentials directory.
type Store struct {
	dir    string
	sealer sealer
}

// Option configures a Store.
type Option func(*Store)

// WithEncryption encrypts every file written by the store with the age
// identity loaded by LoadIdentity.
func WithEncryption(id *Identities) Option {
	return func(s *Store) {
		if id != nil {
			s.sealer = id
		}
	}
}

// NewStore returns a store rooted at dir. The directory is created on
// first Save.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, sealer: plain{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string { return s.dir }

// Present reports whether a credential blob exists on disk.
func (s *Store) Present() bool {
	_, err := os.Stat(filepath.Join(s.dir, credsFile))
	return err == nil
}

// Load reads the directory. A missing directory or creds.json yields an
// empty, unpaired state.
func (s *Store) Load() (*AuthState, error) {
	state := &AuthState{Keys: make(map[string]json.RawMessage)}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := s.readFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		if name == credsFile {
			state.Creds = data
			continue
		}
		state.Keys[keyName(name)] = data
	}

	if len(state.Creds) > 0 {
		state.Identity = parseIdentity(state.Creds)
	}
	return state, nil
}

// Save writes the credential blob (when non-empty) and applies the key
// changes. A null key value removes that key's file.
func (s *Store) Save(creds json.RawMessage, keys map[string]json.RawMessage) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	if len(creds) > 0 {
		if !json.Valid(creds) {
			return errors.New("credentials blob is not valid JSON")
		}
		if err := s.writeFile(filepath.Join(s.dir, credsFile), creds); err != nil {
			return err
		}
	}

	for name, value := range keys {
		path := filepath.Join(s.dir, keyFileName(name))
		if isNull(value) {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("removing key %q: %w", name, err)
			}
			continue
		}
		if err := s.writeFile(path, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) readFile(path string) (json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	data, err := s.sealer.open(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", filepath.Base(path), err)
	}
	return json.RawMessage(data), nil
}

func (s *Store) writeFile(path string, data []byte) error {
	sealed, err := s.sealer.seal(data)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, sealed, 0o600)
}

// keyFileName maps a key name to a file name that is safe on every
// filesystem. The mapping is reversible by keyName, so distinct keys never
// share a file.
func keyFileName(name string) string {
	escaped := strings.ReplaceAll(url.PathEscape(name), ":", "%3A")
	if escaped == strings.TrimSuffix(credsFile, ".json") {
		escaped = "%63" + escaped[1:]
	}
	return escaped + ".json"
}

func keyName(fileName string) string {
	stem := strings.TrimSuffix(fileName, ".json")
	name, err := url.PathUnescape(stem)
	if err != nil {
		return stem
	}
	return name
}

func isNull(v json.RawMessage) bool {
	t := strings.TrimSpace(string(v))
	return t == "" || t == "null"
}

func parseIdentity(creds []byte) Identity {
	doc := gjson.ParseBytes(creds)
	return Identity{
		ID:         doc.Get("me.id").String(),
		Name:       doc.Get("me.name").String(),
		Registered: doc.Get("registered").Bool(),
	}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
