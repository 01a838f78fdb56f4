package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
)

type sealer interface {
	seal(plaintext []byte) ([]byte, error)
	open(stored []byte) ([]byte, error)
}

type plain struct{}

func (plain) seal(b []byte) ([]byte, error) { return b, nil }
func (plain) open(b []byte) ([]byte, error) { return b, nil }

// Identities encrypts credential files to an age X25519 identity.
type Identities struct {
	identities []age.Identity
	recipient  age.Recipient
}

// LoadIdentity reads an age identity file (as written by age-keygen).
// The first X25519 identity in the file is used as the recipient for
// new writes; every identity in the file may decrypt.
func LoadIdentity(path string) (*Identities, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening age identity: %w", err)
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing age identity %s: %w", path, err)
	}

	out := &Identities{identities: ids}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			out.recipient = x.Recipient()
			break
		}
	}
	if out.recipient == nil {
		return nil, errors.New("age identity file has no X25519 identity")
	}
	return out, nil
}

func (i *Identities) seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, i.recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// open decrypts stored. Files still in plaintext JSON, left over from
// before encryption was enabled, are returned as-is and re-encrypted on
// their next write.
func (i *Identities) open(stored []byte) ([]byte, error) {
	if t := bytes.TrimSpace(stored); len(t) > 0 && (t[0] == '{' || t[0] == '[') {
		return stored, nil
	}
	r, err := age.Decrypt(bytes.NewReader(stored), i.identities...)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
