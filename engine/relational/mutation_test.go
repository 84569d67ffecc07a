package relational

import (
	"strings"
	"testing"

	"github.com/qoredb/core/model"
)

func TestBuildInsertSortsColumnsAndUsesPositionalBinds(t *testing.T) {
	b := &Base{}
	data := model.RowData{
		"zeta":  model.IntValue(1),
		"alpha": model.TextValue("x"),
	}
	stmt, args := b.buildInsert(mysqlDialect{}, "users", data)

	wantStmt := "INSERT INTO `users` (`alpha`, `zeta`) VALUES (?, ?)"
	if stmt != wantStmt {
		t.Fatalf("stmt = %q, want %q", stmt, wantStmt)
	}
	if len(args) != 2 || args[0] != "x" || args[1] != int64(1) {
		t.Fatalf("args = %#v, want [x, 1] in sorted-column order", args)
	}
}

func TestBuildInsertAllDefaults(t *testing.T) {
	b := &Base{}
	stmt, args := b.buildInsert(postgresDialect{}, "users", model.RowData{})
	if stmt != `INSERT INTO "users" DEFAULT VALUES` {
		t.Fatalf("stmt = %q", stmt)
	}
	if args != nil {
		t.Fatalf("args = %#v, want nil", args)
	}
}

func TestBuildInsertNeverConcatenatesValuesIntoSQL(t *testing.T) {
	b := &Base{}
	data := model.RowData{"name": model.TextValue("robert'); DROP TABLE students;--")}
	stmt, args := b.buildInsert(postgresDialect{}, "users", data)
	if strings.Contains(stmt, "DROP TABLE") {
		t.Fatalf("value leaked into statement text: %q", stmt)
	}
	if len(args) != 1 || args[0] != "robert'); DROP TABLE students;--" {
		t.Fatalf("args = %#v", args)
	}
}

func TestBuildUpdateRequiresNonEmptyPK(t *testing.T) {
	b := &Base{}
	stmt, args, zero := b.buildUpdate(postgresDialect{}, "users", model.RowData{}, model.RowData{"name": model.TextValue("x")})
	if stmt != "" || args != nil || zero {
		t.Fatalf("empty pk should yield no statement and zero=false, got stmt=%q args=%v zero=%v", stmt, args, zero)
	}
}

func TestBuildUpdateEmptyDataShortCircuitsToZeroAffected(t *testing.T) {
	b := &Base{}
	stmt, args, zero := b.buildUpdate(postgresDialect{}, "users", model.RowData{"id": model.IntValue(1)}, model.RowData{})
	if !zero {
		t.Fatalf("expected zero=true for non-empty pk + empty data")
	}
	if stmt != "" || args != nil {
		t.Fatalf("expected no statement to be generated, got stmt=%q args=%v", stmt, args)
	}
}

func TestBuildUpdateBindsDataThenPK(t *testing.T) {
	b := &Base{}
	pk := model.RowData{"id": model.IntValue(42)}
	data := model.RowData{"name": model.TextValue("alice")}
	stmt, args, zero := b.buildUpdate(postgresDialect{}, "users", pk, data)
	if zero {
		t.Fatalf("did not expect short-circuit")
	}
	want := `UPDATE "users" SET "name" = $1 WHERE "id" = $2`
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if len(args) != 2 || args[0] != "alice" || args[1] != int64(42) {
		t.Fatalf("args = %#v", args)
	}
}

func TestBuildDeleteRequiresNonEmptyPK(t *testing.T) {
	b := &Base{}
	_, _, err := b.buildDelete(mysqlDialect{}, "users", model.RowData{})
	if err == nil {
		t.Fatal("expected an error for empty primary key")
	}
}

func TestBuildDeleteGeneratesConjunctiveWhere(t *testing.T) {
	b := &Base{}
	pk := model.RowData{"tenant_id": model.IntValue(1), "id": model.IntValue(2)}
	stmt, args, err := b.buildDelete(mysqlDialect{}, "users", pk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "DELETE FROM `users` WHERE `id` = ? AND `tenant_id` = ?"
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if len(args) != 2 || args[0] != int64(2) || args[1] != int64(1) {
		t.Fatalf("args = %#v", args)
	}
}
