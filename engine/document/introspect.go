package document

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qoredb/core/model"
)

// ListNamespaces lists the databases visible to this session's
// credentials. Document stores have no schema concept, so Namespace.Schema
// is always empty.
func (d *Driver) ListNamespaces(ctx context.Context, sessionID model.SessionId) ([]model.Namespace, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return nil, err
	}
	names, err := s.client.ListDatabaseNames(ctx, bson.M{})
	if err != nil {
		return nil, classifyMongoErr(ctx, err)
	}
	out := make([]model.Namespace, len(names))
	for i, n := range names {
		out[i] = model.Namespace{Database: n}
	}
	return out, nil
}

// ListCollections lists the collections in ns.Database.
func (d *Driver) ListCollections(ctx context.Context, sessionID model.SessionId, ns model.Namespace) ([]model.Collection, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return nil, err
	}
	names, err := s.client.Database(ns.Database).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, classifyMongoErr(ctx, err)
	}
	out := make([]model.Collection, len(names))
	for i, n := range names {
		out[i] = model.Collection{Namespace: ns, Name: n, Kind: model.CollectionDocument}
	}
	return out, nil
}

// DescribeTable infers a schema by sampling up to SchemaSampleSize
// documents and unioning their fields, since document collections carry
// no declared schema.
func (d *Driver) DescribeTable(ctx context.Context, sessionID model.SessionId, ns model.Namespace, table string) (model.TableSchema, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return model.TableSchema{}, err
	}
	cur, err := s.client.Database(ns.Database).Collection(table).Find(ctx, bson.M{})
	if err != nil {
		return model.TableSchema{}, classifyMongoErr(ctx, err)
	}
	defer cur.Close(ctx)

	seen := make(map[string]int)
	var cols []model.SchemaColumn
	sampled := 0
	for sampled < SchemaSampleSize && cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return model.TableSchema{}, model.Wrap(model.KindExecutionError, "failed to decode sample document", err)
		}
		for k := range doc {
			if _, ok := seen[k]; !ok {
				seen[k] = len(cols)
				cols = append(cols, model.SchemaColumn{Column: model.Column{Name: k, DataType: "json", Nullable: true}})
			}
		}
		sampled++
	}
	if err := cur.Err(); err != nil {
		return model.TableSchema{}, classifyMongoErr(ctx, err)
	}

	return model.TableSchema{Columns: cols}, nil
}

// PreviewTable returns up to limit documents from table.
func (d *Driver) PreviewTable(ctx context.Context, sessionID model.SessionId, ns model.Namespace, table string, limit int) (model.QueryResult, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	if limit <= 0 || limit > MaxFindResults {
		limit = MaxFindResults
	}

	start := time.Now()
	cur, err := s.client.Database(ns.Database).Collection(table).Find(ctx, bson.M{}, options.FindWithLimit(int64(limit)))
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
}
