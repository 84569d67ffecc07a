package safety

import "strings"

// mutatingDocumentTokens are the operation names that write data or
// schema when they appear in a document query as an explicit operation
// token / JSON "operation":"..." value. The dotted shorthand's implicit
// default, find, never mutates and is not listed.
var mutatingDocumentTokens = []string{
	"create_collection",
	"drop_collection",
	"drop_database",
	"insert",
	"update",
	"delete",
	"replace",
}

// ClassifyDocument applies the document driver's literal-substring check
// in place of a parser: it looks for a known mutating operation token,
// either bare or inside a JSON "operation":"..." field. Dangerous is
// always false, since document operations here have no unconditional
// whole-collection-wipe shape to flag — drop_collection/drop_database
// are mutations but not classified as dangerous.
func ClassifyDocument(query string) Classification {
	lower := strings.ToLower(query)
	for _, tok := range mutatingDocumentTokens {
		if strings.Contains(lower, `"operation":"`+tok+`"`) || strings.Contains(lower, `"operation": "`+tok+`"`) {
			return Classification{IsMutation: true}
		}
	}
	// Bare dotted shorthand ("db.collection") has no operation token at
	// all and defaults to find, which is read-only.
	if !strings.Contains(query, "{") {
		return Classification{}
	}
	for _, tok := range mutatingDocumentTokens {
		if strings.Contains(lower, tok) {
			return Classification{IsMutation: true}
		}
	}
	return Classification{}
}
