package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// mongo 文档中的保留字段
const (
	mongoIDField      = "_id"
	mongoUpdatedField = "_updatedAt"
)

// MongoStore 基于 MongoDB 的文档存储：每个 collection 对应一个 Mongo 集合，
// 事务依赖副本集。
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	notifier Notifier
	logger   *zap.Logger
}

// NewMongoStore 连接 MongoDB 并 Ping
func NewMongoStore(ctx context.Context, uri, database string, notifier Notifier, logger *zap.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("连接 MongoDB 失败: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB ping 失败: %w", err)
	}

	if notifier == nil {
		notifier = NewLocalNotifier()
	}

	logger.Info("MongoDB 连接成功", zap.String("database", database))

	return &MongoStore{
		client:   client,
		db:       client.Database(database),
		notifier: notifier,
		logger:   logger,
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	return mongoOps{db: s.db}.get(ctx, collection, id)
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, data interface{}) error {
	if err := (mongoOps{db: s.db}).set(ctx, collection, id, data); err != nil {
		return err
	}
	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := (mongoOps{db: s.db}).update(ctx, collection, id, fields); err != nil {
		return err
	}
	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{mongoIDField: id}); err != nil {
		return err
	}
	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Snapshot, error) {
	filter := bson.D{}
	for _, f := range filters {
		v, err := toBSONValue(f.Value)
		if err != nil {
			return nil, err
		}
		filter = append(filter, bson.E{Key: f.Field, Value: v})
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: mongoIDField, Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*Snapshot, 0)
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		snap, err := snapshotFromBSON(m)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, cur.Err()
}

func (s *MongoStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (<-chan []*Snapshot, error) {
	return watchQuery(ctx, s.notifier, collection, func(ctx context.Context) ([]*Snapshot, error) {
		return s.Query(ctx, collection, filters...)
	}, s.logger)
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	touched := make(map[string]bool)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoTx{ops: mongoOps{db: s.db}, sc: sc, touched: touched})
	})
	if err != nil {
		return err
	}
	for collection := range touched {
		s.notifier.Notify(ctx, collection)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type mongoOps struct {
	db *mongo.Database
}

func (o mongoOps) get(ctx context.Context, collection, id string) (*Snapshot, error) {
	var m bson.M
	err := o.db.Collection(collection).FindOne(ctx, bson.M{mongoIDField: id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snapshotFromBSON(m)
}

func (o mongoOps) set(ctx context.Context, collection, id string, data interface{}) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return err
	}
	doc = append(bson.D{{Key: mongoIDField, Value: id}}, doc...)
	doc = append(doc, bson.E{Key: mongoUpdatedField, Value: primitive.NewDateTimeFromTime(time.Now())})

	_, err = o.db.Collection(collection).ReplaceOne(ctx, bson.M{mongoIDField: id}, doc,
		options.Replace().SetUpsert(true))
	return err
}

func (o mongoOps) update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	set := bson.D{{Key: mongoUpdatedField, Value: primitive.NewDateTimeFromTime(time.Now())}}
	unset := bson.D{}
	for k, v := range fields {
		if v == DeleteField {
			unset = append(unset, bson.E{Key: k, Value: ""})
			continue
		}
		bv, err := toBSONValue(v)
		if err != nil {
			return err
		}
		set = append(set, bson.E{Key: k, Value: bv})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := o.db.Collection(collection).UpdateOne(ctx, bson.M{mongoIDField: id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoTx struct {
	ops     mongoOps
	sc      mongo.SessionContext
	touched map[string]bool
}

func (t *mongoTx) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	return t.ops.get(t.sc, collection, id)
}

func (t *mongoTx) Set(_ context.Context, collection, id string, data interface{}) error {
	t.touched[collection] = true
	return t.ops.set(t.sc, collection, id, data)
}

func (t *mongoTx) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	t.touched[collection] = true
	return t.ops.update(t.sc, collection, id, fields)
}

func (t *mongoTx) Delete(_ context.Context, collection, id string) error {
	t.touched[collection] = true
	_, err := t.ops.db.Collection(collection).DeleteOne(t.sc, bson.M{mongoIDField: id})
	return err
}

// toBSONValue 经 JSON 转换，使写入 Mongo 的数值 / 时间类型与文档编码一致
func toBSONValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(map[string]interface{}{"v": v})
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, err
	}
	return m["v"], nil
}

// snapshotFromBSON 剥离保留字段并转回普通 JSON
func snapshotFromBSON(m bson.M) (*Snapshot, error) {
	id, _ := m[mongoIDField].(string)
	var updatedAt time.Time
	if dt, ok := m[mongoUpdatedField].(primitive.DateTime); ok {
		updatedAt = dt.Time()
	}
	delete(m, mongoIDField)
	delete(m, mongoUpdatedField)

	raw, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, err
	}
	return &Snapshot{ID: id, Data: raw, UpdatedAt: updatedAt}, nil
}
