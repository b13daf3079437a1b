package savedfilter

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/worktrack/worktrack/pkg/model"
)

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	coll   *mongo.Collection
	client *mongo.Client // owned connection, disconnected on Close
}

type filterDoc struct {
	ID         string         `bson:"_id"`
	OwnerID    string         `bson:"owner_id"`
	TableID    string         `bson:"table_id"`
	Name       string         `bson:"name"`
	Conditions []conditionDoc `bson:"conditions"`
	Operators  []string       `bson:"operators"`
	Sort       []sortDoc      `bson:"sort"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

type conditionDoc struct {
	Column   string      `bson:"column"`
	Operator string      `bson:"operator"`
	Value    interface{} `bson:"value"`
	// Undefined marks a condition saved without a value.
	Undefined bool `bson:"undefined,omitempty"`
}

type sortDoc struct {
	Column    string `bson:"column"`
	Direction string `bson:"direction"`
}

// NewMongoStore creates a store on db.collection.
func NewMongoStore(db *mongo.Database, collectionName string) *MongoStore {
	if collectionName == "" {
		collectionName = "saved_filters"
	}
	return &MongoStore{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique (owner, table, name) index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "table_id", Value: 1},
			{Key: "name", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uq_owner_table_name"),
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, f *SavedFilter) error {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}

	_, err := s.coll.InsertOne(ctx, toDoc(f))
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrExists
	}
	return model.WrapError(err)
}

func (s *MongoStore) Get(ctx context.Context, key Key) (*SavedFilter, error) {
	var doc filterDoc
	err := s.coll.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return fromDoc(&doc), nil
}

func (s *MongoStore) List(ctx context.Context, opts ListOptions) ([]*SavedFilter, int, error) {
	opts = opts.Normalized()

	filter := bson.M{"owner_id": opts.OwnerID}
	if opts.TableID != "" {
		filter["table_id"] = opts.TableID
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, model.WrapError(err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "table_id", Value: 1}, {Key: "name", Value: 1}}).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	filters := []*SavedFilter{}
	for cursor.Next(ctx) {
		var doc filterDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		filters = append(filters, fromDoc(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, model.WrapError(err)
	}
	return filters, int(total), nil
}

func (s *MongoStore) Update(ctx context.Context, f *SavedFilter) error {
	f.UpdatedAt = time.Now().UTC()
	doc := toDoc(f)

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": f.ID}, bson.M{"$set": bson.M{
		"name":       doc.Name,
		"conditions": doc.Conditions,
		"operators":  doc.Operators,
		"sort":       doc.Sort,
		"updated_at": doc.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrExists
		}
		return model.WrapError(err)
	}
	if result.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key Key) error {
	result, err := s.coll.DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return model.WrapError(err)
	}
	if result.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func keyFilter(key Key) bson.M {
	return bson.M{"owner_id": key.OwnerID, "table_id": key.TableID, "name": key.Name}
}

func toDoc(f *SavedFilter) *filterDoc {
	doc := &filterDoc{
		ID:         f.ID,
		OwnerID:    f.OwnerID,
		TableID:    f.TableID,
		Name:       f.Name,
		Conditions: make([]conditionDoc, len(f.Conditions)),
		Operators:  make([]string, len(f.Operators)),
		Sort:       make([]sortDoc, len(f.Sort)),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
	for i, c := range f.Conditions {
		doc.Conditions[i] = conditionDoc{
			Column:    c.Column,
			Operator:  string(c.Operator),
			Value:     c.Value.Interface(),
			Undefined: c.Value.Kind() == model.KindUndefined,
		}
	}
	for i, op := range f.Operators {
		doc.Operators[i] = string(op)
	}
	for i, s := range f.Sort {
		doc.Sort[i] = sortDoc{Column: s.Column, Direction: string(s.Direction)}
	}
	return doc
}

func fromDoc(doc *filterDoc) *SavedFilter {
	f := &SavedFilter{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		TableID:   doc.TableID,
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, c := range doc.Conditions {
		v := model.Undefined
		if !c.Undefined {
			v = bsonValue(c.Value)
		}
		f.Conditions = append(f.Conditions, model.Condition{
			Column:   c.Column,
			Operator: model.Operator(c.Operator),
			Value:    v,
		})
	}
	for _, op := range doc.Operators {
		f.Operators = append(f.Operators, model.LogicalOp(op))
	}
	for _, s := range doc.Sort {
		f.Sort = append(f.Sort, model.SortSpec{Column: s.Column, Direction: model.SortDirection(s.Direction)})
	}
	return f
}

func bsonValue(x interface{}) model.Value {
	if dt, ok := x.(primitive.DateTime); ok {
		return model.Date(dt.Time())
	}
	return model.ValueOf(x)
}
