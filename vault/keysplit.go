// keysplit.go adapts the teacher's Shamir-backed master key recovery
// (master_key_manager.go's createShamirShares/loadShamirShares) into an
// opt-in backup of the vault encryption key: unlike the teacher, where
// Shamir sharing can be the key's only persisted form, here the
// encryption key is always kept under the platform secret store and
// Shamir shares are purely a recovery-codes style backup a caller must
// explicitly request.
package vault

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/shamir"

	"github.com/qoredb/core/model"
)

const shareFilePrefix = "share_"
const shareFileSuffix = ".key"

// SplitEncryptionKeyBackup splits the vault's current encryption key
// into totalShares Shamir shares (threshold needed to reconstruct) and
// writes them as separate files under dir, one per share, so they can
// be distributed to different custodians.
func SplitEncryptionKeyBackup(store SecretStore, dir string, threshold, totalShares int) error {
	if threshold < 2 || threshold > totalShares {
		return model.NewError(model.KindInternal, "invalid shamir threshold/total shares")
	}
	key, err := ensureEncryptionKey(store)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to read vault encryption key", err)
	}

	shares, err := shamir.Split(key, threshold, totalShares)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to split vault encryption key", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return model.Wrap(model.KindInternal, "failed to create shamir share directory", err)
	}
	for i, share := range shares {
		path := filepath.Join(dir, fmt.Sprintf("%s%d%s", shareFilePrefix, i+1, shareFileSuffix))
		encoded := base64.StdEncoding.EncodeToString(share)
		if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
			return model.Wrap(model.KindInternal, fmt.Sprintf("failed to write shamir share %d", i+1), err)
		}
	}
	return nil
}

// RestoreEncryptionKeyFromShares reconstructs the vault encryption key
// from the shamir share files under dir and installs it as the vault's
// encryption key, overwriting whatever key was there before. Used to
// recover a vault whose original key material was lost.
func RestoreEncryptionKeyFromShares(store SecretStore, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to read shamir share directory", err)
	}

	var shares [][]byte
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, shareFilePrefix) || !strings.HasSuffix(name, shareFileSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		share, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		shares = append(shares, share)
	}
	if len(shares) == 0 {
		return model.NewError(model.KindInternal, "no valid shamir shares found in "+dir)
	}

	key, err := shamir.Combine(shares)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to reconstruct vault encryption key", err)
	}
	return store.Set(vaultEncryptionKeyService, vaultEncryptionKeyName, base64.StdEncoding.EncodeToString(key))
}
