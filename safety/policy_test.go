package safety

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_DefaultsWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	p := s.Get()
	if !p.ProdRequireConfirmation || !p.ProdBlockDangerousSQL {
		t.Errorf("expected conservative defaults, got %+v", p)
	}
}

func TestStore_SetPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Set(Policy{ProdRequireConfirmation: false, ProdBlockDangerousSQL: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.Get().ProdRequireConfirmation {
		t.Errorf("expected confirmation requirement cleared after Set")
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	if s2.Get().ProdRequireConfirmation {
		t.Errorf("persisted policy did not survive reload")
	}
}

func TestStore_EnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Set(Policy{ProdRequireConfirmation: false, ProdBlockDangerousSQL: false}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	os.Setenv("QOREDB_PROD_REQUIRE_CONFIRMATION", "yes")
	defer os.Unsetenv("QOREDB_PROD_REQUIRE_CONFIRMATION")

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	if !s2.Get().ProdRequireConfirmation {
		t.Errorf("environment override did not take effect")
	}
}

func TestGate_ReadOnlyBlocksMutation(t *testing.T) {
	c := Classify("postgres", "UPDATE users SET name='x' WHERE id=1")
	d := Gate(c, true, false, false, DefaultPolicy())
	if d.Allowed {
		t.Errorf("expected read-only session to block a mutation")
	}
	if d.Reason != "Operation blocked: read-only mode" {
		t.Errorf("unexpected reason: %q", d.Reason)
	}
}

func TestGate_ProductionDangerousRequiresConfirmation(t *testing.T) {
	p := Policy{ProdRequireConfirmation: true, ProdBlockDangerousSQL: false}
	c := Classify("postgres", "DROP TABLE audit")

	d := Gate(c, false, true, false, p)
	if d.Allowed {
		t.Errorf("expected block without acknowledgement")
	}

	d = Gate(c, false, true, true, p)
	if !d.Allowed {
		t.Errorf("expected allow once acknowledged")
	}
}

func TestGate_ProductionBlockDangerousOverridesAcknowledgement(t *testing.T) {
	p := Policy{ProdRequireConfirmation: true, ProdBlockDangerousSQL: true}
	c := Classify("postgres", "DROP TABLE audit")

	d := Gate(c, false, true, true, p)
	if d.Allowed {
		t.Errorf("block-dangerous-sql must win even when acknowledged")
	}
}

func TestGate_ParseFailureInProduction(t *testing.T) {
	p := Policy{ProdRequireConfirmation: true, ProdBlockDangerousSQL: false}
	c := Classify("postgres", "THIS IS NOT SQL")

	d := Gate(c, false, true, false, p)
	if d.Allowed {
		t.Errorf("expected block: unparseable SQL requires confirmation in production")
	}

	d = Gate(c, false, true, true, p)
	if !d.Allowed {
		t.Errorf("expected allow once acknowledged")
	}
}

func TestGate_ParseFailureReadOnlyAlwaysBlocks(t *testing.T) {
	c := Classify("postgres", "THIS IS NOT SQL")
	d := Gate(c, true, false, true, DefaultPolicy())
	if d.Allowed {
		t.Errorf("read-only session must block unparseable SQL even when acknowledged")
	}
}

func TestGate_NonProductionAllowsDangerous(t *testing.T) {
	c := Classify("postgres", "DROP TABLE audit")
	d := Gate(c, false, false, false, DefaultPolicy())
	if !d.Allowed {
		t.Errorf("dangerous statements outside production should not be gated")
	}
}
