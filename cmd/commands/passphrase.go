package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"golang.org/x/term"

	"github.com/dohr-michael/priomatrix/internal/secrets"
)

// PassphraseEnv supplies the backup passphrase non-interactively.
const PassphraseEnv = "PRIOMATRIX_PASSPHRASE"

func readPassphrase(prompt string) (string, error) {
	if v := os.Getenv(PassphraseEnv); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", errors.New("empty passphrase")
	}
	return string(b), nil
}

// backupRecipient picks the age recipient for an encrypted backup: a
// passphrase, or the local key (created on first use).
func backupRecipient(passphrase bool) (age.Recipient, error) {
	if passphrase {
		pass, err := readPassphrase("Backup passphrase: ")
		if err != nil {
			return nil, err
		}
		return age.NewScryptRecipient(pass)
	}
	keyPath := secrets.KeyPath()
	if err := secrets.GenerateIdentity(keyPath); err != nil {
		return nil, err
	}
	id, err := secrets.LoadIdentity(keyPath)
	if err != nil {
		return nil, err
	}
	return id.Recipient(), nil
}

// restoreIdentity is the matching lookup for a sealed backup.
func restoreIdentity(passphrase bool) func() (age.Identity, error) {
	return func() (age.Identity, error) {
		if passphrase {
			pass, err := readPassphrase("Backup passphrase: ")
			if err != nil {
				return nil, err
			}
			return age.NewScryptIdentity(pass)
		}
		id, err := secrets.LoadIdentity(secrets.KeyPath())
		if err != nil {
			return nil, fmt.Errorf("backup is encrypted (try --passphrase): %w", err)
		}
		return id, nil
	}
}
