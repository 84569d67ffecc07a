package core

import (
	"github.com/qoredb/core/model"
	"github.com/qoredb/core/vault"
)

// VaultStatus is get_vault_status's payload shape.
type VaultStatus struct {
	IsLocked         bool `json:"is_locked"`
	HasMasterPassword bool `json:"has_master_password"`
}

func (c *Core) GetVaultStatus() (VaultStatus, error) {
	has, err := c.lock.HasMasterPassword()
	if err != nil {
		return VaultStatus{}, err
	}
	return VaultStatus{IsLocked: !c.lock.IsUnlocked(), HasMasterPassword: has}, nil
}

func (c *Core) SetupMasterPassword(password string) error {
	return c.lock.SetupMasterPassword(password)
}

// UnlockVault reports whether password was correct, distinct from a
// storage failure, mirroring vault.Lock.Unlock.
func (c *Core) UnlockVault(password string) (bool, error) {
	return c.lock.Unlock(password)
}

func (c *Core) LockVault() {
	c.lock.Lock()
}

func (c *Core) SaveConnection(meta model.SavedConnection, creds vault.StoredCredentials) error {
	return c.storage.Save(meta, creds)
}

func (c *Core) ListSavedConnections(projectID string) ([]model.SavedConnection, error) {
	return c.storage.ListFull(projectID)
}

func (c *Core) DeleteSavedConnection(projectID string, id model.ConnectionId) error {
	return c.storage.Delete(projectID, id)
}

// BackupVaultKeyShares splits the vault's encryption key into a Shamir
// secret-sharing backup under dir, for an operator who explicitly opts
// into recovery-codes-style key backup.
func (c *Core) BackupVaultKeyShares(dir string, threshold, totalShares int) error {
	return vault.SplitEncryptionKeyBackup(c.secretStore, dir, threshold, totalShares)
}

// RestoreVaultKeyFromShares reconstructs the vault's encryption key from
// a Shamir share backup under dir, overwriting whatever key is currently
// installed. Used to recover a vault whose key material was lost.
func (c *Core) RestoreVaultKeyFromShares(dir string) error {
	return vault.RestoreEncryptionKeyFromShares(c.secretStore, dir)
}
