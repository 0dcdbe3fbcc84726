package encryption

import (
	"bytes"
	"fmt"
	"io"

	"scenedeck/internal/deck"
)

var header = []byte("DECKENC\x00")

// HeaderEncryptor is a reversible stand-in for age in tests and local
// setups: it prefixes a fixed header and performs no cryptography.
type HeaderEncryptor struct{}

// NewHeaderEncryptor creates a HeaderEncryptor.
func NewHeaderEncryptor() *HeaderEncryptor {
	return &HeaderEncryptor{}
}

func (e *HeaderEncryptor) Setup(string) error { return nil }

func (e *HeaderEncryptor) IsConfigured() bool { return true }

func (e *HeaderEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *HeaderEncryptor) Unlock(string) (deck.DecryptionContext, error) {
	return headerDecryption{}, nil
}

type headerDecryption struct{}

func (headerDecryption) Decrypt(r io.Reader, w io.Writer) error {
	got := make([]byte, len(header))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(got, header) {
		return fmt.Errorf("invalid encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

var _ deck.Encryptor = (*HeaderEncryptor)(nil)
