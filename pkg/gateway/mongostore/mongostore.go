// Package mongostore maps gateway tables onto MongoDB collections.
package mongostore

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ecoforum/pkg/gateway"
)

var operators = map[gateway.Op]string{
	gateway.OpEq:  "$eq",
	gateway.OpNeq: "$ne",
	gateway.OpGt:  "$gt",
	gateway.OpGte: "$gte",
	gateway.OpLt:  "$lt",
	gateway.OpLte: "$lte",
	gateway.OpIn:  "$in",
}

type Store struct {
	db IMongoDB
}

func New(db IMongoDB) *Store {
	return &Store{db: db}
}

func NewFromDatabase(db *mongo.Database) *Store {
	return New(&MongoDatabase{DB: db})
}

// EnsureIndexes creates one unique index per column set.
func (s *Store) EnsureIndexes(ctx context.Context, unique map[string][][]string) error {
	names := make([]string, 0, len(unique))
	for name := range unique {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, keys := range unique[name] {
			if err := s.db.Collection(name).CreateUniqueIndex(ctx, keys); err != nil {
				return fmt.Errorf("mongostore: index %s%v: %w", name, keys, err)
			}
		}
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	opts := options.Find()
	if len(q.Order) > 0 {
		sortDoc := bson.D{}
		for _, o := range q.Order {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: o.Field, Value: dir})
		}
		opts.SetSort(sortDoc)
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	filter, err := buildFilter(q.Filters)
	if err != nil {
		return nil, err
	}
	cur, err := s.db.Collection(table).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: find in %s: %w", table, err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode %s: %w", table, err)
	}
	out := make([]gateway.Row, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, row gateway.Row) error {
	err := s.db.Collection(table).InsertOne(ctx, toDocument(row))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongostore: insert into %s: %w", table, gateway.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("mongostore: insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, filters []gateway.Filter, patch gateway.Row) (int64, error) {
	filter, err := buildFilter(filters)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(table).UpdateMany(ctx, filter, bson.M{"$set": toDocument(patch)})
	if mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("mongostore: update %s: %w", table, gateway.ErrDuplicate)
	}
	if err != nil {
		return 0, fmt.Errorf("mongostore: update %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, table string, filters []gateway.Filter) (int64, error) {
	filter, err := buildFilter(filters)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(table).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongostore: delete from %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) Upsert(ctx context.Context, table string, row gateway.Row, conflictKeys []string) error {
	if len(conflictKeys) == 0 {
		return fmt.Errorf("mongostore: upsert into %s without conflict keys", table)
	}
	filter := bson.D{}
	for _, k := range conflictKeys {
		filter = append(filter, bson.E{Key: k, Value: row[k]})
	}
	err := s.db.Collection(table).UpsertOne(ctx, filter, bson.M{"$set": toDocument(row)})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongostore: upsert into %s: %w", table, gateway.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("mongostore: upsert into %s: %w", table, err)
	}
	return nil
}

func buildFilter(filters []gateway.Filter) (bson.D, error) {
	if len(filters) == 0 {
		return bson.D{}, nil
	}
	and := bson.A{}
	for _, f := range filters {
		cond, err := condition(f)
		if err != nil {
			return nil, err
		}
		and = append(and, bson.D{{Key: f.Field, Value: cond}})
	}
	return bson.D{{Key: "$and", Value: and}}, nil
}

func condition(f gateway.Filter) (interface{}, error) {
	switch f.Op {
	case gateway.OpContains:
		s, _ := f.Value.(string)
		return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}, nil
	case gateway.OpIn:
		vs, _ := f.Value.([]interface{})
		return bson.D{{Key: "$in", Value: bson.A(append([]interface{}{}, vs...))}}, nil
	}
	op, ok := operators[f.Op]
	if !ok {
		return nil, fmt.Errorf("mongostore: unsupported operator %q", f.Op)
	}
	return bson.D{{Key: op, Value: f.Value}}, nil
}

func toDocument(row gateway.Row) bson.M {
	doc := make(bson.M, len(row))
	for k, v := range row {
		doc[k] = v
	}
	return doc
}

// fromDocument drops the object id and narrows driver types to the ones the
// row accessors expect.
func fromDocument(doc bson.M) gateway.Row {
	row := make(gateway.Row, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		switch t := v.(type) {
		case primitive.DateTime:
			row[k] = t.Time().UTC()
		case int32:
			row[k] = int64(t)
		default:
			row[k] = v
		}
	}
	return row
}
