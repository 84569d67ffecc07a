package vault

import (
	"testing"

	"github.com/qoredb/core/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewFileSecretStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSecretStore: %v", err)
	}
	lock, err := NewLock(store)
	if err != nil {
		t.Fatalf("NewLock: %v", err)
	}
	storage, err := NewStorage(store, lock)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return storage
}

func TestStorage_SaveAndGet(t *testing.T) {
	s := newTestStorage(t)
	meta := model.SavedConnection{ID: "conn-1", ProjectID: "proj-a", Name: "prod db", DriverTag: "postgres", Host: "db.internal", Port: 5432, Environment: model.EnvProduction, ReadOnly: true}
	creds := StoredCredentials{Password: "hunter2"}

	if err := s.Save(meta, creds); err != nil {
		t.Fatalf("Save: %v", err)
	}

	gotMeta, err := s.GetMetadata("proj-a", "conn-1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if gotMeta.Name != "prod db" || gotMeta.Host != "db.internal" || !gotMeta.ReadOnly {
		t.Errorf("unexpected metadata: %+v", gotMeta)
	}

	gotCreds, err := s.GetCredentials("proj-a", "conn-1")
	if err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}
	if gotCreds.Password != "hunter2" {
		t.Errorf("unexpected credentials: %+v", gotCreds)
	}
}

func TestStorage_SaveIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	meta := model.SavedConnection{ID: "conn-1", ProjectID: "proj-a", Name: "v1"}
	if err := s.Save(meta, StoredCredentials{Password: "a"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	meta.Name = "v2"
	if err := s.Save(meta, StoredCredentials{Password: "b"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	ids, err := s.List("proj-a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly one id after re-saving same id, got %v", ids)
	}

	got, err := s.GetMetadata("proj-a", "conn-1")
	if err != nil || got.Name != "v2" {
		t.Errorf("expected overwritten metadata v2, got %+v, err %v", got, err)
	}
}

func TestStorage_List_NoDuplicates(t *testing.T) {
	s := newTestStorage(t)
	for i := 0; i < 3; i++ {
		if err := s.Save(model.SavedConnection{ID: "conn-1", ProjectID: "proj-a"}, StoredCredentials{}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	ids, err := s.List("proj-a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected no duplicate ids, got %v", ids)
	}
}

func TestStorage_Delete_RemovesAllThree(t *testing.T) {
	s := newTestStorage(t)
	meta := model.SavedConnection{ID: "conn-1", ProjectID: "proj-a"}
	if err := s.Save(meta, StoredCredentials{Password: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete("proj-a", "conn-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := s.GetMetadata("proj-a", "conn-1"); model.KindOf(err) != model.KindSessionNotFound {
		t.Errorf("expected metadata gone after delete, got %v", err)
	}
	if _, err := s.GetCredentials("proj-a", "conn-1"); model.KindOf(err) != model.KindSessionNotFound {
		t.Errorf("expected credentials gone after delete, got %v", err)
	}
	ids, err := s.List("proj-a")
	if err != nil || len(ids) != 0 {
		t.Errorf("expected empty list after delete, got %v, err %v", ids, err)
	}
}

func TestStorage_Delete_TolerantOfMissingEntry(t *testing.T) {
	s := newTestStorage(t)
	if err := s.Delete("proj-a", "never-existed"); err != nil {
		t.Errorf("expected deleting a missing entry to be a no-op, got %v", err)
	}
}

func TestStorage_ListFull_MaterializesMetadata(t *testing.T) {
	s := newTestStorage(t)
	for _, name := range []string{"a", "b", "c"} {
		meta := model.SavedConnection{ID: model.ConnectionId(name), ProjectID: "proj-a", Name: name}
		if err := s.Save(meta, StoredCredentials{}); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	full, err := s.ListFull("proj-a")
	if err != nil {
		t.Fatalf("ListFull: %v", err)
	}
	if len(full) != 3 {
		t.Fatalf("expected 3 saved connections, got %d", len(full))
	}
}

func TestStorage_RequiresUnlockedVault(t *testing.T) {
	store, err := NewFileSecretStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSecretStore: %v", err)
	}
	lock, err := NewLock(store)
	if err != nil {
		t.Fatalf("NewLock: %v", err)
	}
	if err := lock.SetupMasterPassword("secret"); err != nil {
		t.Fatalf("SetupMasterPassword: %v", err)
	}
	lock.Lock()

	storage, err := NewStorage(store, lock)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	if err := storage.Save(model.SavedConnection{ID: "x", ProjectID: "p"}, StoredCredentials{}); model.KindOf(err) != model.KindPolicyBlocked {
		t.Errorf("expected Save to be blocked while locked, got %v", err)
	}
}

func TestStorage_ProjectsAreIsolated(t *testing.T) {
	s := newTestStorage(t)
	if err := s.Save(model.SavedConnection{ID: "conn-1", ProjectID: "proj-a"}, StoredCredentials{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ids, err := s.List("proj-b")
	if err != nil || len(ids) != 0 {
		t.Errorf("expected proj-b's list to be empty, got %v, err %v", ids, err)
	}
}
