// Package secrets seals backups with age, either to the local X25519 key or
// to a passphrase.
package secrets

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/dohr-michael/priomatrix/internal/config"
)

// binaryHeader opens every unarmored age file.
const binaryHeader = "age-encryption.org/v1"

// KeyPath returns the default age key file path: $PRIOMATRIX_PATH/.age-key.
func KeyPath() string {
	return filepath.Join(config.PriomatrixPath(), ".age-key")
}

// GenerateIdentity creates an X25519 key pair and writes it to path with 0o600.
// It is idempotent: if the file already exists, it does nothing.
func GenerateIdentity(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generate age identity: %w", err)
	}

	content := fmt.Sprintf("# created by priomatrix\n# public key: %s\n%s\n",
		identity.Recipient().String(), identity.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write age key: %w", err)
	}
	return nil
}

// LoadIdentity reads an age private key from the given file.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", path)
	}

	id, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("unexpected identity type in %s", path)
	}
	return id, nil
}

// Seal returns a writer that encrypts to recipient and ASCII-armors the
// result into dst. Close must be called to flush the final chunk.
func Seal(dst io.Writer, recipient age.Recipient) (io.WriteCloser, error) {
	aw := armor.NewWriter(dst)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return nil, fmt.Errorf("age encrypt init: %w", err)
	}
	return &sealWriter{WriteCloser: w, armor: aw}, nil
}

type sealWriter struct {
	io.WriteCloser
	armor io.WriteCloser
}

func (s *sealWriter) Close() error {
	if err := s.WriteCloser.Close(); err != nil {
		return fmt.Errorf("age encrypt close: %w", err)
	}
	return s.armor.Close()
}

// Unseal decrypts src when it is an age file, armored or not, and passes it
// through untouched otherwise. identity is only consulted for sealed input.
func Unseal(src io.Reader, identity func() (age.Identity, error)) (io.Reader, bool, error) {
	br := bufio.NewReader(src)
	head, _ := br.Peek(len(armor.Header))

	var payload io.Reader
	switch {
	case bytes.HasPrefix(head, []byte(armor.Header)):
		payload = armor.NewReader(br)
	case bytes.HasPrefix(head, []byte(binaryHeader)):
		payload = br
	default:
		return br, false, nil
	}

	id, err := identity()
	if err != nil {
		return nil, true, err
	}
	r, err := age.Decrypt(payload, id)
	if err != nil {
		return nil, true, fmt.Errorf("age decrypt: %w", err)
	}
	return r, true, nil
}

// IsSealed reports whether data starts like an age file.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(armor.Header)) || bytes.HasPrefix(data, []byte(binaryHeader))
}
