package vault

import (
	"sync"

	"github.com/qoredb/core/model"
)

// masterPasswordService/masterPasswordKey are the fixed platform secret
// store coordinates the hashed master password is stored under.
const (
	masterPasswordService = "qoredb"
	masterPasswordKey     = "__master_password_hash__"
)

// SecretStore is the platform secret store contract the Vault Lock and
// Vault Storage are built against. Every secret is addressed by a
// (service, key) pair, mirroring how a real OS keychain/credential
// manager namespaces entries by service rather than one flat string. A
// single small interface keeps every call site testable without a real
// OS keychain, and lets the platform backend (keychain, credential
// manager, GNOME keyring) vary by target without vault/ knowing which
// one is in use.
type SecretStore interface {
	Get(service, key string) (string, bool, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// Lock is the Vault Lock: a single is_unlocked boolean plus the
// cryptographic hashing needed to gate it, matching the single-mutex
// invariant that hashing happens inside the lock rather than outside it.
type Lock struct {
	mu         sync.Mutex
	store      SecretStore
	isUnlocked bool
}

// NewLock builds a Vault Lock over store. If no master password has
// ever been set, the vault starts unlocked (auto_unlock_if_no_password).
func NewLock(store SecretStore) (*Lock, error) {
	l := &Lock{store: store}
	_, exists, err := store.Get(masterPasswordService, masterPasswordKey)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to read vault state", err)
	}
	l.isUnlocked = !exists
	return l, nil
}

// IsUnlocked reports the current lock state.
func (l *Lock) IsUnlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isUnlocked
}

// HasMasterPassword reports whether a master password hash is stored.
func (l *Lock) HasMasterPassword() (bool, error) {
	_, exists, err := l.store.Get(masterPasswordService, masterPasswordKey)
	if err != nil {
		return false, model.Wrap(model.KindInternal, "failed to read vault state", err)
	}
	return exists, nil
}

// SetupMasterPassword generates a salt, Argon2id-hashes password, stores
// the hash under the fixed secret store key, and unlocks the vault.
func (l *Lock) SetupMasterPassword(password string) error {
	if password == "" {
		return model.NewError(model.KindInternal, "master password must not be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	hash := hashPassword(password)
	if err := l.store.Set(masterPasswordService, masterPasswordKey, encodePasswordHash(hash)); err != nil {
		return model.Wrap(model.KindInternal, "failed to store master password hash", err)
	}

	l.isUnlocked = true
	return nil
}

// Unlock verifies password against the stored hash. The boolean return
// distinguishes a wrong password (false, nil) from a storage failure
// (false, err), since the caller needs to tell those apart to report the
// right error to the user.
func (l *Lock) Unlock(password string) (bool, error) {
	encoded, exists, err := l.store.Get(masterPasswordService, masterPasswordKey)
	if err != nil {
		return false, model.Wrap(model.KindInternal, "failed to read master password hash", err)
	}
	if !exists {
		// No password configured: treat as already unlocked.
		l.mu.Lock()
		l.isUnlocked = true
		l.mu.Unlock()
		return true, nil
	}

	hash, err := decodePasswordHash(encoded)
	if err != nil {
		return false, model.Wrap(model.KindInternal, "stored master password hash is corrupted", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !hash.verify(password) {
		return false, nil
	}
	l.isUnlocked = true
	return true, nil
}

// Lock drops the unlocked flag.
func (l *Lock) Lock() {
	l.mu.Lock()
	l.isUnlocked = false
	l.mu.Unlock()
}

// RemoveMasterPassword verifies password, deletes the stored hash, and
// flips the vault to permanently unlocked (there is no password left to
// gate on).
func (l *Lock) RemoveMasterPassword(password string) error {
	encoded, exists, err := l.store.Get(masterPasswordService, masterPasswordKey)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to read master password hash", err)
	}
	if !exists {
		l.mu.Lock()
		l.isUnlocked = true
		l.mu.Unlock()
		return nil
	}

	hash, err := decodePasswordHash(encoded)
	if err != nil {
		return model.Wrap(model.KindInternal, "stored master password hash is corrupted", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !hash.verify(password) {
		return model.NewError(model.KindAuthFailed, "incorrect master password")
	}

	if err := l.store.Delete(masterPasswordService, masterPasswordKey); err != nil {
		return model.Wrap(model.KindInternal, "failed to delete master password hash", err)
	}

	l.isUnlocked = true
	return nil
}

// RequireUnlocked is the assertion every vault read/write path performs
// before proceeding.
func (l *Lock) RequireUnlocked() error {
	if !l.IsUnlocked() {
		return model.NewError(model.KindPolicyBlocked, "vault is locked")
	}
	return nil
}
