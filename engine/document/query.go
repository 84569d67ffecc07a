package document

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qoredb/core/model"
)

// operation enumerates the dispatchable document-driver operations.
type operation string

const (
	opFind            operation = "find"
	opCreateCollection operation = "create_collection"
	opDropCollection  operation = "drop_collection"
	opDropDatabase    operation = "drop_database"
)

// parsedQuery is the result of decoding either query shape the document
// driver accepts.
type parsedQuery struct {
	Database   string
	Collection string
	Operation  operation
	Filter     bson.M
}

type jsonQueryShape struct {
	Database   string         `json:"database"`
	Collection string         `json:"collection"`
	Operation  string         `json:"operation"`
	Query      map[string]any `json:"query"`
}

// parseQuery accepts either the dotted shorthand "database.collection" or
// a JSON object {database, collection, operation?, query?}.
func parseQuery(raw string) (parsedQuery, error) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var shape jsonQueryShape
		if err := json.Unmarshal([]byte(trimmed), &shape); err != nil {
			return parsedQuery{}, model.Wrap(model.KindSyntaxError, "invalid document query JSON", err)
		}
		op := operation(shape.Operation)
		if op == "" {
			op = opFind
		}
		var filter bson.M
		if shape.Query != nil {
			filter = bson.M(shape.Query)
		}
		return parsedQuery{Database: shape.Database, Collection: shape.Collection, Operation: op, Filter: filter}, nil
	}

	parts := strings.SplitN(trimmed, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return parsedQuery{}, model.NewError(model.KindSyntaxError, "expected \"database.collection\" or a JSON query object")
	}
	return parsedQuery{Database: parts[0], Collection: parts[1], Operation: opFind}, nil
}

func docToRow(columns *[]model.Column, seen map[string]int, doc bson.M) model.Row {
	row := make(model.Row, len(*columns))
	for k, v := range doc {
		idx, ok := seen[k]
		if !ok {
			idx = len(*columns)
			seen[k] = idx
			*columns = append(*columns, model.Column{Name: k, DataType: "json", Nullable: true})
			row = append(row, model.NullValue())
		}
		row[idx] = bsonToValue(v)
	}
	return row
}

func bsonToValue(v any) model.Value {
	if v == nil {
		return model.NullValue()
	}
	switch t := v.(type) {
	case bool:
		return model.BoolValue(t)
	case int32:
		return model.IntValue(int64(t))
	case int64:
		return model.IntValue(t)
	case float64:
		return model.FloatValue(t)
	case string:
		return model.TextValue(t)
	case bson.M:
		return model.JSONValue(map[string]any(t))
	case map[string]any:
		return model.JSONValue(t)
	case bson.A:
		vals := make([]model.Value, len(t))
		for i, e := range t {
			vals[i] = bsonToValue(e)
		}
		return model.ArrayValue(vals)
	default:
		return model.JSONValue(t)
	}
}

// Execute dispatches a parsed document query. find returns up to
// MaxFindResults documents; the other operations are schema-shaping
// commands that return an affected-count of 1 on success.
func (d *Driver) Execute(ctx context.Context, sessionID model.SessionId, query string, queryID model.QueryId) (model.QueryResult, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	pq, err := parseQuery(query)
	if err != nil {
		return model.QueryResult{}, err
	}

	start := time.Now()
	db := s.client.Database(pq.Database)

	switch pq.Operation {
	case opCreateCollection:
		if err := db.CreateCollection(ctx, pq.Collection); err != nil {
			return model.QueryResult{}, model.Wrap(model.KindExecutionError, "create_collection failed", err)
		}
		n := int64(1)
		return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil

	case opDropCollection:
		if err := db.Collection(pq.Collection).Drop(ctx); err != nil {
			return model.QueryResult{}, model.Wrap(model.KindExecutionError, "drop_collection failed", err)
		}
		n := int64(1)
		return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil

	case opDropDatabase:
		if err := db.Drop(ctx); err != nil {
			return model.QueryResult{}, model.Wrap(model.KindExecutionError, "drop_database failed", err)
		}
		n := int64(1)
		return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil

	case opFind:
		findOpts := options.FindWithLimit(MaxFindResults)
		cur, err := db.Collection(pq.Collection).Find(ctx, coalesceFilter(pq.Filter), findOpts)
		if err != nil {
			return model.QueryResult{}, classifyMongoErr(ctx, err)
		}
		defer cur.Close(ctx)

		var columns []model.Column
		seen := make(map[string]int)
		var rows []model.Row
		for cur.Next(ctx) {
			var doc bson.M
			if err := cur.Decode(&doc); err != nil {
				return model.QueryResult{}, model.Wrap(model.KindExecutionError, "failed to decode document", err)
			}
			rows = append(rows, docToRow(&columns, seen, doc))
		}
		if err := cur.Err(); err != nil {
			return model.QueryResult{}, classifyMongoErr(ctx, err)
		}
		return model.QueryResult{Columns: columns, Rows: rows, DurationMs: time.Since(start).Milliseconds()}, nil

	default:
		return model.QueryResult{}, model.NewError(model.KindSyntaxError, "unknown document operation: "+string(pq.Operation))
	}
}

func coalesceFilter(f bson.M) bson.M {
	if f == nil {
		return bson.M{}
	}
	return f
}

func classifyMongoErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return model.NewTimeout("document query timed out", 0)
	}
	if mongo.IsTimeout(err) {
		return model.NewTimeout("document query timed out", 0)
	}
	return model.Wrap(model.KindExecutionError, "document query failed", err)
}
