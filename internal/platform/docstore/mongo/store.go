// Package mongo is the MongoDB docstore driver. Each docstore collection
// maps to a MongoDB collection; ids are ObjectID hex strings kept in _id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ docstore.Store    = (*Store)(nil)
	_ docstore.Migrator = (*Store)(nil)
)

// Open connects and pings the deployment.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func mongoField(field string) string {
	if field == docstore.IDField {
		return "_id"
	}
	return field
}

// fromRaw converts a BSON document to canonical JSON types via relaxed
// extended JSON, which renders doubles as plain numbers.
func fromRaw(raw bson.Raw) (docstore.Document, error) {
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	doc := docstore.Document{}
	if err := json.Unmarshal(ext, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if id, ok := doc["_id"]; ok {
		doc[docstore.IDField] = id
		delete(doc, "_id")
	}
	return doc, nil
}

func toBSON(doc docstore.Document) (bson.M, error) {
	norm, err := docstore.Normalize(doc)
	if err != nil {
		return nil, err
	}
	delete(norm, "_id")
	return bson.M(norm), nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	m, err := toBSON(doc)
	if err != nil {
		return "", err
	}
	id := bson.NewObjectID().Hex()
	m["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromRaw(raw)
}

// Update uses $set, which replaces nested objects rather than merging them.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	m, err := toBSON(fields)
	if err != nil {
		return err
	}
	if len(m) == 0 {
		if _, err := s.Get(ctx, collection, id); err != nil {
			return err
		}
		return nil
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": m})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Put(ctx context.Context, collection, id string, doc docstore.Document) error {
	if id == "" {
		return fmt.Errorf("put %s: id is required", collection)
	}
	m, err := toBSON(doc)
	if err != nil {
		return err
	}
	m["_id"] = id
	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func buildFilter(filters []docstore.Filter) (bson.M, error) {
	filter := bson.M{}
	for _, f := range filters {
		field := mongoField(f.Field)
		switch f.Op {
		case docstore.OpEq:
			v, err := docstore.NormalizeValue(f.Value)
			if err != nil {
				return nil, err
			}
			filter[field] = v
		case docstore.OpIn:
			values, _ := f.Value.([]any)
			norm := make(bson.A, 0, len(values))
			for _, v := range values {
				nv, err := docstore.NormalizeValue(v)
				if err != nil {
					return nil, err
				}
				norm = append(norm, nv)
			}
			filter[field] = bson.M{"$in": norm}
		case docstore.OpContains:
			sub, _ := f.Value.(string)
			filter[field] = bson.Regex{Pattern: regexp.QuoteMeta(sub), Options: "i"}
		}
	}
	return filter, nil
}

func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	filter, err := buildFilter(q.Where)
	if err != nil {
		return nil, err
	}

	sort := bson.D{}
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: mongoField(q.OrderBy), Value: dir})
	}
	if q.OrderBy != docstore.IDField {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}
	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	out := []docstore.Document{}
	for cur.Next(ctx) {
		doc, err := fromRaw(cur.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return 0, err
	}
	filter, err := buildFilter(q.Where)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return int(n), nil
}

// EnsureCollections creates single-field ascending indexes.
func (s *Store) EnsureCollections(ctx context.Context, collections []docstore.Collection) error {
	for _, c := range collections {
		for _, field := range c.Indexes {
			if err := docstore.ValidateField(field); err != nil {
				return err
			}
			_, err := s.db.Collection(c.Name).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: field, Value: 1}},
			})
			if err != nil {
				return fmt.Errorf("index %s.%s: %w", c.Name, field, err)
			}
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
