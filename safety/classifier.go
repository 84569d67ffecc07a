// Package safety implements the SQL safety classifier and the policy
// gate that sits between a parsed query and the engine that would run
// it.
package safety

import (
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Classification is the outcome of classifying one statement.
type Classification struct {
	IsMutation bool
	IsDangerous bool
	// ParseFailed is true when the statement could not be parsed at all.
	// A failed parse is never treated as read-only: the gate in policy.go
	// routes it down the conservative "assume mutation" branch.
	ParseFailed bool
}

// Classify inspects a SQL statement and reports whether running it would
// mutate data and whether it counts as structurally dangerous. Multiple
// semicolon-separated statements are classified individually and
// OR-reduced: the batch is a mutation if any piece is, and dangerous if
// any piece is.
//
// dialectTag selects parser behavior that differs between engines; today
// both mysql and postgres tags use the same Vitess-derived grammar, since
// xwb1989/sqlparser only models one SQL dialect. The parameter is kept so
// a dialect-specific parser can be slotted in later without changing
// every caller.
func Classify(dialectTag, query string) Classification {
	pieces, err := sqlparser.SplitStatementToPieces(query)
	if err != nil || len(pieces) == 0 {
		return classifyOne(query)
	}

	var out Classification
	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		c := classifyOne(trimmed)
		out.IsMutation = out.IsMutation || c.IsMutation
		out.IsDangerous = out.IsDangerous || c.IsDangerous
		out.ParseFailed = out.ParseFailed || c.ParseFailed
	}
	return out
}

// splitExplain strips a leading EXPLAIN, optionally followed by
// ANALYZE, so the inner statement can be classified on its own terms.
func splitExplain(query string) (inner string, isExplain, isAnalyze bool) {
	trimmed := strings.TrimSpace(query)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "EXPLAIN") {
		return query, false, false
	}
	rest := strings.TrimSpace(trimmed[len("EXPLAIN"):])
	restUpper := strings.ToUpper(rest)
	if strings.HasPrefix(restUpper, "ANALYZE") {
		return strings.TrimSpace(rest[len("ANALYZE"):]), true, true
	}
	return rest, true, false
}

func classifyOne(query string) Classification {
	inner, isExplain, isAnalyze := splitExplain(query)

	if isExplain {
		if !isAnalyze {
			// A plain EXPLAIN never executes the inner statement, so it
			// is always read-only and never dangerous regardless of what
			// it describes.
			return Classification{}
		}
		// EXPLAIN ANALYZE actually runs the inner statement, so its
		// mutation status is inherited from it. It never counts as
		// dangerous on its own: the dangerous classification belongs to
		// the inner statement's own shape and is inherited the same way.
		return classifyParsed(inner)
	}

	return classifyParsed(query)
}

func classifyParsed(query string) Classification {
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return Classification{ParseFailed: true}
	}
	return classifyStatement(stmt)
}

func classifyStatement(stmt sqlparser.Statement) Classification {
	switch n := stmt.(type) {
	case *sqlparser.Select:
		return Classification{IsMutation: selectHasInto(n)}
	case *sqlparser.Union:
		return classifySelectStatement(n.Left).or(classifySelectStatement(n.Right))

	case *sqlparser.Insert:
		return Classification{IsMutation: true}
	case *sqlparser.Update:
		return Classification{IsMutation: true, IsDangerous: updateIsUnconditional(n)}
	case *sqlparser.Delete:
		return Classification{IsMutation: true, IsDangerous: deleteIsUnconditional(n)}

	case *sqlparser.DDL:
		return classifyDDL(n)

	case *sqlparser.Set:
		return Classification{}
	case *sqlparser.Show:
		return Classification{}
	case *sqlparser.Use:
		return Classification{}
	case *sqlparser.Begin:
		return Classification{}
	case *sqlparser.Commit:
		return Classification{}
	case *sqlparser.Rollback:
		return Classification{}
	case *sqlparser.OtherRead:
		// DESCRIBE and similar introspection statements the grammar
		// doesn't model in detail; treated as read-only.
		return Classification{}
	case *sqlparser.OtherAdmin:
		// ANALYZE TABLE, REPAIR TABLE, OPTIMIZE TABLE and similar: these
		// mutate server-side statistics/storage but never row data, and
		// are not destructive, so they count as mutations but not
		// dangerous.
		return Classification{IsMutation: true}

	default:
		// Anything the grammar doesn't recognize by name is classified
		// as a mutation out of caution rather than silently passed
		// through as read-only.
		return Classification{IsMutation: true}
	}
}

// or combines two classifications the way a UNION's branches combine:
// a mutation or dangerous flag on either side taints the whole.
func (c Classification) or(other Classification) Classification {
	return Classification{
		IsMutation:  c.IsMutation || other.IsMutation,
		IsDangerous: c.IsDangerous || other.IsDangerous,
		ParseFailed: c.ParseFailed || other.ParseFailed,
	}
}

// classifySelectStatement handles the SelectStatement side of the
// grammar (Select and Union), which is a narrower interface than
// Statement and so is walked separately from classifyStatement.
func classifySelectStatement(ss sqlparser.SelectStatement) Classification {
	switch n := ss.(type) {
	case *sqlparser.Select:
		return Classification{IsMutation: selectHasInto(n)}
	case *sqlparser.Union:
		return classifySelectStatement(n.Left).or(classifySelectStatement(n.Right))
	default:
		return Classification{}
	}
}

// selectHasInto reports whether a SELECT carries an INTO clause
// (SELECT ... INTO OUTFILE / SELECT ... INTO table), which writes data
// and so counts as a mutation despite being a SELECT statement.
func selectHasInto(sel *sqlparser.Select) bool {
	return strings.TrimSpace(sel.Into) != ""
}

var dangerousDDLActions = map[string]bool{
	sqlparser.DropStr:     true,
	sqlparser.TruncateStr: true,
	sqlparser.AlterStr:    true,
}

func classifyDDL(ddl *sqlparser.DDL) Classification {
	return Classification{IsMutation: true, IsDangerous: dangerousDDLActions[ddl.Action]}
}

// updateIsUnconditional reports whether an UPDATE has no WHERE clause,
// the shape that silently rewrites an entire table.
func updateIsUnconditional(u *sqlparser.Update) bool {
	return u.Where == nil
}

// deleteIsUnconditional reports whether a DELETE has no WHERE clause,
// the shape that silently empties an entire table.
func deleteIsUnconditional(d *sqlparser.Delete) bool {
	return d.Where == nil
}
