package document

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/qoredb/core/model"
)

func rowDataToBSON(data model.RowData) bson.M {
	doc := bson.M{}
	for k, v := range data {
		doc[k] = valueToBSON(v)
	}
	return doc
}

func valueToBSON(v model.Value) any {
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
	case model.KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = valueToBSON(e)
		}
		return out
	default:
		return nil
	}
}

func (d *Driver) InsertRow(ctx context.Context, sessionID model.SessionId, table string, data model.RowData) (model.QueryResult, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	start := time.Now()
	_, err = s.client.Database(s.cfg.Database).Collection(table).InsertOne(ctx, rowDataToBSON(data))
	if err != nil {
		return model.QueryResult{}, classifyMongoErr(ctx, err)
	}
	n := int64(1)
	return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil
}

// UpdateRow and DeleteRow reuse the same empty-primary-key refusal and
// empty-data short-circuit invariants as the relational drivers, with pk
// treated as the document filter.
func (d *Driver) UpdateRow(ctx context.Context, sessionID model.SessionId, table string, pk, data model.RowData) (model.QueryResult, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	if len(pk) == 0 {
		return model.QueryResult{}, model.NewError(model.KindExecutionError, "update_row requires a non-empty primary key")
	}
	if len(data) == 0 {
		var n int64
		return model.QueryResult{AffectedCount: &n}, nil
	}

	start := time.Now()
	res, err := s.client.Database(s.cfg.Database).Collection(table).UpdateOne(
		ctx, rowDataToBSON(pk), bson.M{"$set": rowDataToBSON(data)})
	if err != nil {
		return model.QueryResult{}, classifyMongoErr(ctx, err)
	}
	n := res.ModifiedCount
	return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil
}

func (d *Driver) DeleteRow(ctx context.Context, sessionID model.SessionId, table string, pk model.RowData) (model.QueryResult, error) {
	s, err := d.session(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	if len(pk) == 0 {
		return model.QueryResult{}, model.NewError(model.KindExecutionError, "delete_row requires a non-empty primary key")
	}

	start := time.Now()
	res, err := s.client.Database(s.cfg.Database).Collection(table).DeleteOne(ctx, rowDataToBSON(pk))
	if err != nil {
		return model.QueryResult{}, classifyMongoErr(ctx, err)
	}
	n := res.DeletedCount
	return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil
}
