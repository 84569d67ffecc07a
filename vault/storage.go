package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/qoredb/core/model"
)

// vaultEncryptionKeyService/vaultEncryptionKeyName are the fixed secret
// store coordinates for the random 32-byte key that wraps every Vault
// Storage entry. It is independent of the master password: the
// password gates access (Lock.IsUnlocked), the encryption key protects
// data at rest, following the teacher's split between ensureMasterKey's
// random persisted key and the password-prompting layered on top of
// it. It shares the master password's service since, like the
// password hash, it is vault-wide rather than project-scoped.
const (
	vaultEncryptionKeyService = masterPasswordService
	vaultEncryptionKeyName    = "__vault_encryption_key__"
)

// projectService is the platform secret store service name a project's
// connection metadata, credentials, and connection list are namespaced
// under.
func projectService(projectID string) string {
	return fmt.Sprintf("qoredb_%s", projectID)
}

// Storage is the Vault Storage: project-scoped, AEAD-sealed metadata and
// credentials, plus a per-project id list stored as plain JSON, one set
// of three keys per connection.
type Storage struct {
	store SecretStore
	lock  *Lock
	env   *envelope
}

// NewStorage builds a Vault Storage over store, generating the
// vault-wide encryption key on first use and reusing it thereafter.
func NewStorage(store SecretStore, lock *Lock) (*Storage, error) {
	key, err := ensureEncryptionKey(store)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to establish vault encryption key", err)
	}
	env, err := newEnvelope(key)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to initialize vault encryption", err)
	}
	return &Storage{store: store, lock: lock, env: env}, nil
}

func ensureEncryptionKey(store SecretStore) ([]byte, error) {
	encoded, exists, err := store.Get(vaultEncryptionKeyService, vaultEncryptionKeyName)
	if err != nil {
		return nil, err
	}
	if exists {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("corrupted vault encryption key: %w", err)
		}
		return key, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := store.Set(vaultEncryptionKeyService, vaultEncryptionKeyName, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

func metadataKey(id model.ConnectionId) string {
	return fmt.Sprintf("meta_%s", id)
}

func credentialsKey(id model.ConnectionId) string {
	return fmt.Sprintf("creds_%s", id)
}

const connectionListKey = "__connection_list__"

func (s *Storage) seal(objectID string, aad []byte, v any) (string, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sealed, err := s.env.seal(objectID, blob, aad)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Storage) open(objectID string, aad []byte, encoded string, v any) error {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("corrupted vault entry: %w", err)
	}
	blob, err := s.env.open(objectID, sealed, aad)
	if err != nil {
		return fmt.Errorf("vault entry failed to decrypt: %w", err)
	}
	return json.Unmarshal(blob, v)
}

// Save persists meta and creds for meta.ID, adding the id to
// meta.ProjectID's list if not already present. Saving the same id
// again overwrites both keys in place: the operation is idempotent.
func (s *Storage) Save(meta model.SavedConnection, creds StoredCredentials) error {
	if err := s.lock.RequireUnlocked(); err != nil {
		return err
	}

	aad := []byte(meta.ProjectID)
	metaEncoded, err := s.seal(string(meta.ID), aad, meta)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to seal connection metadata", err)
	}
	credsEncoded, err := s.seal(string(meta.ID)+":creds", aad, creds)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to seal connection credentials", err)
	}

	service := projectService(meta.ProjectID)
	if err := s.store.Set(service, metadataKey(meta.ID), metaEncoded); err != nil {
		return model.Wrap(model.KindInternal, "failed to store connection metadata", err)
	}
	if err := s.store.Set(service, credentialsKey(meta.ID), credsEncoded); err != nil {
		return model.Wrap(model.KindInternal, "failed to store connection credentials", err)
	}
	return s.addToList(meta.ProjectID, meta.ID)
}

// GetMetadata loads the non-secret half of a saved connection.
func (s *Storage) GetMetadata(projectID string, id model.ConnectionId) (model.SavedConnection, error) {
	if err := s.lock.RequireUnlocked(); err != nil {
		return model.SavedConnection{}, err
	}
	encoded, exists, err := s.store.Get(projectService(projectID), metadataKey(id))
	if err != nil {
		return model.SavedConnection{}, model.Wrap(model.KindInternal, "failed to read connection metadata", err)
	}
	if !exists {
		return model.SavedConnection{}, model.NewError(model.KindSessionNotFound, "saved connection not found: "+string(id))
	}
	var meta model.SavedConnection
	if err := s.open(string(id), []byte(projectID), encoded, &meta); err != nil {
		return model.SavedConnection{}, model.Wrap(model.KindInternal, "failed to decrypt connection metadata", err)
	}
	return meta, nil
}

// GetCredentials loads the secret half of a saved connection.
func (s *Storage) GetCredentials(projectID string, id model.ConnectionId) (StoredCredentials, error) {
	if err := s.lock.RequireUnlocked(); err != nil {
		return StoredCredentials{}, err
	}
	encoded, exists, err := s.store.Get(projectService(projectID), credentialsKey(id))
	if err != nil {
		return StoredCredentials{}, model.Wrap(model.KindInternal, "failed to read connection credentials", err)
	}
	if !exists {
		return StoredCredentials{}, model.NewError(model.KindSessionNotFound, "saved connection credentials not found: "+string(id))
	}
	var creds StoredCredentials
	if err := s.open(string(id)+":creds", []byte(projectID), encoded, &creds); err != nil {
		return StoredCredentials{}, model.Wrap(model.KindInternal, "failed to decrypt connection credentials", err)
	}
	return creds, nil
}

// Delete removes metadata, credentials, and the list entry, in that
// order, tolerating any of the three already being absent.
func (s *Storage) Delete(projectID string, id model.ConnectionId) error {
	if err := s.lock.RequireUnlocked(); err != nil {
		return err
	}
	service := projectService(projectID)
	if err := s.store.Delete(service, metadataKey(id)); err != nil {
		return model.Wrap(model.KindInternal, "failed to delete connection metadata", err)
	}
	if err := s.store.Delete(service, credentialsKey(id)); err != nil {
		return model.Wrap(model.KindInternal, "failed to delete connection credentials", err)
	}
	return s.removeFromList(projectID, id)
}

// List returns the ordered set of saved connection ids for projectID.
func (s *Storage) List(projectID string) ([]model.ConnectionId, error) {
	if err := s.lock.RequireUnlocked(); err != nil {
		return nil, err
	}
	return s.loadList(projectID)
}

// ListFull materializes metadata for every id in projectID's list,
// silently skipping any id whose metadata cannot be loaded (e.g. it was
// deleted but the list update did not land) rather than failing the
// whole listing.
func (s *Storage) ListFull(projectID string) ([]model.SavedConnection, error) {
	ids, err := s.List(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]model.SavedConnection, 0, len(ids))
	for _, id := range ids {
		meta, err := s.GetMetadata(projectID, id)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

func (s *Storage) loadList(projectID string) ([]model.ConnectionId, error) {
	encoded, exists, err := s.store.Get(projectService(projectID), connectionListKey)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to read connection list", err)
	}
	if !exists {
		return nil, nil
	}
	var ids []model.ConnectionId
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil, model.Wrap(model.KindInternal, "corrupted connection list", err)
	}
	return ids, nil
}

func (s *Storage) addToList(projectID string, id model.ConnectionId) error {
	ids, err := s.loadList(projectID)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return s.storeList(projectID, ids)
}

func (s *Storage) removeFromList(projectID string, id model.ConnectionId) error {
	ids, err := s.loadList(projectID)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return s.storeList(projectID, out)
}

func (s *Storage) storeList(projectID string, ids []model.ConnectionId) error {
	blob, err := json.Marshal(ids)
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to encode connection list", err)
	}
	if err := s.store.Set(projectService(projectID), connectionListKey, string(blob)); err != nil {
		return model.Wrap(model.KindInternal, "failed to store connection list", err)
	}
	return nil
}
