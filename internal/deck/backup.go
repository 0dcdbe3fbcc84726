package deck

import (
	"io"
	"time"
)

// BackupOperation is one recorded offsite backup run.
type BackupOperation struct {
	ID         int64
	Operation  string // "push" or "restore"
	Parameters string
	Status     string // "running", "success" or "error"
	SnapshotID string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BackupLog persists the history of backup operations.
type BackupLog interface {
	CreateBackupOperation(operation, parameters string) (*BackupOperation, error)
	FinishBackupOperation(id int64, status, snapshotID string) error
	ListBackupOperations(limit int) ([]*BackupOperation, error)

	// LastSnapshotID returns the snapshot of the newest successful push,
	// or "" when there is none.
	LastSnapshotID() (string, error)
}

// Encryptor seals backup objects. Encryption needs only the public key;
// decryption needs the private key unlocked with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and stores the private key sealed with
	// passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both keys exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for one
// restore.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// BackupTarget is offsite storage for vault snapshots, addressed by
// slash-separated keys.
type BackupTarget interface {
	Put(key string, r io.Reader, size int64) error
	Get(key string, w io.Writer) error
	Exists(key string) (bool, error)

	// ValidateSetup checks that the target is reachable and writable.
	ValidateSetup() error
}
