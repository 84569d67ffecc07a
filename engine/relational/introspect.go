package relational

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/qoredb/core/model"
)

// ListNamespaces lists the schemas (information_schema.schemata) this
// session's credentials can see, each paired with the session's
// configured database.
func (b *Base) ListNamespaces(ctx context.Context, session model.SessionId) ([]model.Namespace, error) {
	st, err := b.session(session)
	if err != nil {
		return nil, err
	}
	conn, release, _, err := b.acquireConn(ctx, st)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx, "SELECT schema_name FROM information_schema.schemata ORDER BY schema_name")
	if err != nil {
		return nil, classifyExecError(ctx, err)
	}
	defer rows.Close()

	var out []model.Namespace
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, model.Wrap(model.KindExecutionError, "failed to scan namespace row", err)
		}
		out = append(out, model.Namespace{Database: st.cfg.Database, Schema: name})
	}
	return out, rows.Err()
}

// ListCollections lists tables, views, and materialized views visible in
// ns.
func (b *Base) ListCollections(ctx context.Context, session model.SessionId, ns model.Namespace) ([]model.Collection, error) {
	st, err := b.session(session)
	if err != nil {
		return nil, err
	}
	conn, release, _, err := b.acquireConn(ctx, st)
	if err != nil {
		return nil, err
	}
	defer release()

	schema := ns.Schema
	if schema == "" {
		schema = "public"
	}
	rows, err := conn.QueryContext(ctx,
		"SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = "+b.dialect.Placeholder(1),
		schema)
	if err != nil {
		return nil, classifyExecError(ctx, err)
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, model.Wrap(model.KindExecutionError, "failed to scan collection row", err)
		}
		out = append(out, model.Collection{Namespace: ns, Name: name, Kind: classifyTableType(kind)})
	}
	return out, rows.Err()
}

func classifyTableType(raw string) model.CollectionKind {
	switch strings.ToUpper(raw) {
	case "VIEW":
		return model.CollectionView
	case "MATERIALIZED VIEW":
		return model.CollectionMaterializedView
	default:
		return model.CollectionTable
	}
}

// DescribeTable returns column metadata and, where the engine supports
// it, the primary key. RowCountEstimate is always left nil.
func (b *Base) DescribeTable(ctx context.Context, session model.SessionId, ns model.Namespace, table string) (model.TableSchema, error) {
	st, err := b.session(session)
	if err != nil {
		return model.TableSchema{}, err
	}
	conn, release, _, err := b.acquireConn(ctx, st)
	if err != nil {
		return model.TableSchema{}, err
	}
	defer release()

	schema := ns.Schema
	if schema == "" {
		schema = "public"
	}
	rows, err := conn.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = `+b.dialect.Placeholder(1)+` AND table_name = `+b.dialect.Placeholder(2)+`
		 ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return model.TableSchema{}, classifyExecError(ctx, err)
	}
	defer rows.Close()

	var schemaCols []model.SchemaColumn
	for rows.Next() {
		var name, dataType, isNullable string
		var def *string
		if err := rows.Scan(&name, &dataType, &isNullable, &def); err != nil {
			return model.TableSchema{}, model.Wrap(model.KindExecutionError, "failed to scan schema column", err)
		}
		schemaCols = append(schemaCols, model.SchemaColumn{
			Column: model.Column{
				Name:     name,
				DataType: dataType,
				Nullable: strings.EqualFold(isNullable, "YES"),
			},
			Default: def,
		})
	}
	if err := rows.Err(); err != nil {
		return model.TableSchema{}, err
	}

	pk, err := b.primaryKeyColumns(ctx, conn, schema, table)
	if err != nil && !errors.Is(err, errPrimaryKeyUnsupported) {
		return model.TableSchema{}, err
	}
	pkSet := make(map[string]bool, len(pk))
	for _, c := range pk {
		pkSet[c] = true
	}
	for i := range schemaCols {
		schemaCols[i].IsPrimaryKey = pkSet[schemaCols[i].Name]
	}

	return model.TableSchema{Columns: schemaCols, PrimaryKey: pk}, nil
}

var errPrimaryKeyUnsupported = errors.New("primary key introspection not supported")

func (b *Base) primaryKeyColumns(ctx context.Context, conn *sql.Conn, schema, table string) ([]string, error) {
	// Best-effort: information_schema.key_column_usage joined to
	// table_constraints is the portable way to find a primary key across
	// both MySQL and Postgres.
	query := `SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND kcu.table_schema = ` + b.dialect.Placeholder(1) +
		` AND kcu.table_name = ` + b.dialect.Placeholder(2) +
		` ORDER BY kcu.ordinal_position`
	rows, err := conn.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, errPrimaryKeyUnsupported
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// PreviewTable builds a canonical identifier-quoted scan with a LIMIT.
func (b *Base) PreviewTable(ctx context.Context, session model.SessionId, ns model.Namespace, table string, limit int) (model.QueryResult, error) {
	st, err := b.session(session)
	if err != nil {
		return model.QueryResult{}, err
	}
	conn, release, _, err := b.acquireConn(ctx, st)
	if err != nil {
		return model.QueryResult{}, err
	}
	defer release()

	q := b.dialect.QuoteChar()
	parts := []string{}
	if ns.Schema != "" {
		parts = append(parts, quoteIdentifier(q, ns.Schema))
	}
	parts = append(parts, quoteIdentifier(q, table))
	stmt := "SELECT * FROM " + strings.Join(parts, ".") + " LIMIT " + placeholderLimit(limit)

	return b.fetchRows(ctx, conn, stmt, nil)
}

func placeholderLimit(limit int) string {
	if limit <= 0 {
		limit = 100
	}
	return strconv.Itoa(limit)
}
