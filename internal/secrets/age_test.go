package secrets

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
)

func TestGenerateIdentity_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestGenerateIdentity_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("first call: %v", err)
	}
	data1, _ := os.ReadFile(path)

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("second call: %v", err)
	}
	data2, _ := os.ReadFile(path)

	if string(data1) != string(data2) {
		t.Error("idempotency broken: file changed on second call")
	}
}

func TestLoadIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	id, err := LoadIdentity(path)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if id.Recipient() == nil {
		t.Fatal("recipient is nil")
	}
}

func TestLoadIdentity_Missing(t *testing.T) {
	if _, err := LoadIdentity(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func seal(t *testing.T, plaintext string, recipient age.Recipient) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := Seal(&buf, recipient)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestSealUnseal_X25519(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	plaintext := "format: 1\ntasks: []\n"
	sealed := seal(t, plaintext, identity.Recipient())
	if !IsSealed(sealed) {
		t.Fatalf("sealed output does not look like age:\n%s", sealed)
	}
	if bytes.Contains(sealed, []byte("tasks:")) {
		t.Fatal("sealed output leaks plaintext")
	}

	r, wasSealed, err := Unseal(bytes.NewReader(sealed), func() (age.Identity, error) { return identity, nil })
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if !wasSealed {
		t.Error("expected input to be detected as sealed")
	}
	got, _ := io.ReadAll(r)
	if string(got) != plaintext {
		t.Errorf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestSealUnseal_Passphrase(t *testing.T) {
	recipient, err := age.NewScryptRecipient("correct horse")
	if err != nil {
		t.Fatalf("scrypt recipient: %v", err)
	}
	recipient.SetWorkFactor(10)
	sealed := seal(t, "secret", recipient)

	good := func() (age.Identity, error) { return age.NewScryptIdentity("correct horse") }
	r, _, err := Unseal(bytes.NewReader(sealed), good)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	got, _ := io.ReadAll(r)
	if string(got) != "secret" {
		t.Errorf("decrypted = %q", got)
	}

	bad := func() (age.Identity, error) { return age.NewScryptIdentity("battery staple") }
	if _, _, err := Unseal(bytes.NewReader(sealed), bad); err == nil {
		t.Fatal("expected wrong passphrase to fail")
	}
}

func TestUnseal_PassesPlaintextThrough(t *testing.T) {
	called := false
	identity := func() (age.Identity, error) {
		called = true
		return nil, errors.New("should not be asked")
	}

	r, wasSealed, err := Unseal(strings.NewReader("format: 1\n"), identity)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if wasSealed || called {
		t.Fatal("plaintext must not be treated as sealed")
	}
	got, _ := io.ReadAll(r)
	if string(got) != "format: 1\n" {
		t.Errorf("passthrough = %q", got)
	}
}

func TestUnseal_IdentityError(t *testing.T) {
	identity, _ := age.GenerateX25519Identity()
	sealed := seal(t, "x", identity.Recipient())

	want := errors.New("no key")
	_, wasSealed, err := Unseal(bytes.NewReader(sealed), func() (age.Identity, error) { return nil, want })
	if !errors.Is(err, want) || !wasSealed {
		t.Fatalf("expected identity error on sealed input, got sealed=%v err=%v", wasSealed, err)
	}
}

func TestIsSealed(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"-----BEGIN AGE ENCRYPTED FILE-----\n", true},
		{"age-encryption.org/v1\n-> X25519", true},
		{"format: 1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSealed([]byte(tt.input)); got != tt.want {
			t.Errorf("IsSealed(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
