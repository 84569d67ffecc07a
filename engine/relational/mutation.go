package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/qoredb/core/model"
)

// valueToDriverArg unwraps a model.Value into whatever database/sql
// expects as a bind argument.
func valueToDriverArg(v model.Value) any {
	switch v.Kind {
	case model.KindNull:
		return nil
	case model.KindBool:
		return v.Bool
	case model.KindInt64:
		return v.Int
	case model.KindFloat64:
		return v.Float
	case model.KindText:
		return v.Text
	case model.KindBytes:
		return v.Bytes
	case model.KindJSON:
		return v.JSON
	default:
		return v.Text
	}
}

func (b *Base) buildInsert(dialect Dialect, table string, data model.RowData) (string, []any) {
	cols := data.SortedColumns()
	q := dialect.QuoteChar()
	quotedTable := quoteIdentifier(q, table)

	if len(cols) == 0 {
		// "all-defaults" form: let the engine fill every column.
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quotedTable), nil
	}

	quotedCols := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteIdentifier(q, c)
		placeholders[i] = dialect.Placeholder(i + 1)
		args[i] = valueToDriverArg(data[c])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quotedTable, strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	return stmt, args
}

func (b *Base) buildUpdate(dialect Dialect, table string, pk, data model.RowData) (string, []any, bool) {
	pkCols := pk.SortedColumns()
	dataCols := data.SortedColumns()
	if len(pkCols) == 0 {
		return "", nil, false
	}
	if len(dataCols) == 0 {
		// Non-empty PK, empty data: zero affected rows without a round trip.
		return "", nil, true
	}

	q := dialect.QuoteChar()
	quotedTable := quoteIdentifier(q, table)

	setClauses := make([]string, len(dataCols))
	args := make([]any, 0, len(dataCols)+len(pkCols))
	idx := 1
	for i, c := range dataCols {
		setClauses[i] = fmt.Sprintf("%s = %s", quoteIdentifier(q, c), dialect.Placeholder(idx))
		args = append(args, valueToDriverArg(data[c]))
		idx++
	}

	whereClauses := make([]string, len(pkCols))
	for i, c := range pkCols {
		whereClauses[i] = fmt.Sprintf("%s = %s", quoteIdentifier(q, c), dialect.Placeholder(idx))
		args = append(args, valueToDriverArg(pk[c]))
		idx++
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quotedTable, strings.Join(setClauses, ", "), strings.Join(whereClauses, " AND "))
	return stmt, args, false
}

func (b *Base) buildDelete(dialect Dialect, table string, pk model.RowData) (string, []any, error) {
	pkCols := pk.SortedColumns()
	if len(pkCols) == 0 {
		return "", nil, model.NewError(model.KindExecutionError, "delete_row requires a non-empty primary key")
	}

	q := dialect.QuoteChar()
	quotedTable := quoteIdentifier(q, table)

	whereClauses := make([]string, len(pkCols))
	args := make([]any, len(pkCols))
	for i, c := range pkCols {
		whereClauses[i] = fmt.Sprintf("%s = %s", quoteIdentifier(q, c), dialect.Placeholder(i+1))
		args[i] = valueToDriverArg(pk[c])
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", quotedTable, strings.Join(whereClauses, " AND "))
	return stmt, args, nil
}

// InsertRow generates deterministic positionally-bound SQL from data and
// executes it, never concatenating values into the statement text.
func (b *Base) InsertRow(ctx context.Context, session model.SessionId, table string, data model.RowData) (model.QueryResult, error) {
	st, err := b.session(session)
	if err != nil {
		return model.QueryResult{}, err
	}
	stmt, args := b.buildInsert(b.dialect, table, data)
	return b.execWithArgs(ctx, st, stmt, args)
}

// UpdateRow refuses an empty primary key outright, and short-circuits a
// non-empty primary key paired with empty data to a zero-rows-affected
// result without issuing any statement.
func (b *Base) UpdateRow(ctx context.Context, session model.SessionId, table string, pk, data model.RowData) (model.QueryResult, error) {
	st, err := b.session(session)
	if err != nil {
		return model.QueryResult{}, err
	}
	if len(pk.SortedColumns()) == 0 {
		return model.QueryResult{}, model.NewError(model.KindExecutionError, "update_row requires a non-empty primary key")
	}
	stmt, args, zero := b.buildUpdate(b.dialect, table, pk, data)
	if zero {
		var n int64
		return model.QueryResult{AffectedCount: &n}, nil
	}
	return b.execWithArgs(ctx, st, stmt, args)
}

// DeleteRow refuses an empty primary key outright.
func (b *Base) DeleteRow(ctx context.Context, session model.SessionId, table string, pk model.RowData) (model.QueryResult, error) {
	st, err := b.session(session)
	if err != nil {
		return model.QueryResult{}, err
	}
	stmt, args, err := b.buildDelete(b.dialect, table, pk)
	if err != nil {
		return model.QueryResult{}, err
	}
	return b.execWithArgs(ctx, st, stmt, args)
}
