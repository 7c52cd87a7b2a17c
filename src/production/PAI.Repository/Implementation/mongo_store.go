package implementation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	metrics "gitlab.com/plantai/plantai.server/src/production/PAI.Metrics"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const (
	mongoBackend       = "mongo"
	countersCollection = "counters"
)

var _ interfaces.ReadingStore = (*MongoReadingStore)(nil)

// mongoReadingDoc adds the insertion sequence used for ordering and eviction
type mongoReadingDoc struct {
	Seq                  int64 `bson:"seq"`
	models.SensorReading `bson:",inline"`
}

// MongoReadingStore keeps the reading log in a MongoDB collection.
// The client is shared with other repositories and is disconnected by its owner.
// mu serializes appends within this process only; across processes the
// counter sequence orders appends and the seq cutoff keeps trims idempotent.
type MongoReadingStore struct {
	mu       sync.Mutex
	client   *mongo.Client
	coll     *mongo.Collection
	counters *mongo.Collection
	capacity int
	timeout  time.Duration
}

func NewMongoReadingStore(client *mongo.Client, database, collection string, capacity int, timeout time.Duration) *MongoReadingStore {
	db := client.Database(database)
	return &MongoReadingStore{
		client:   client,
		coll:     db.Collection(collection),
		counters: db.Collection(countersCollection),
		capacity: logCapacity(capacity),
		timeout:  timeout,
	}
}

// EnsureIndexes creates the unique sequence index
func (s *MongoReadingStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seq", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	return interfaces.NewStorageError(mongoBackend, "ensure_indexes", err)
}

func (s *MongoReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return interfaces.NewStorageError(mongoBackend, "append", err)
	}

	if _, err := s.coll.InsertOne(ctx, mongoReadingDoc{Seq: seq, SensorReading: reading}); err != nil {
		return interfaces.NewStorageError(mongoBackend, "append", err)
	}

	// Everything older than the newest capacity entries goes
	if cutoff := seq - int64(s.capacity); cutoff > 0 {
		trimAfterInsert(mongoBackend, func() error {
			_, err := s.coll.DeleteMany(ctx, bson.M{"seq": bson.M{"$lte": cutoff}})
			return err
		})
	}
	return nil
}

// trimAfterInsert runs the eviction step of an append whose insert has already
// committed. A failure is logged and counted but not returned: the reading is
// stored, and the trim of the next append removes whatever is left over.
func trimAfterInsert(backend string, trim func() error) {
	if err := trim(); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(backend, "trim").Inc()
		logger.GetGlobalLogger().Warn().Err(err).Str("backend", backend).Msg("Failed to trim reading log, retrying on next append")
	}
}

func (s *MongoReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc mongoReadingDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	err := s.coll.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, interfaces.NewStorageError(mongoBackend, "latest", err)
	}

	reading := doc.SensorReading
	reading.Timestamp = reading.Timestamp.UTC()
	return &reading, nil
}

func (s *MongoReadingStore) Ping(ctx context.Context) error {
	return interfaces.NewStorageError(mongoBackend, "ping", s.client.Ping(ctx, readpref.Primary()))
}

func (s *MongoReadingStore) Close(ctx context.Context) error { return nil }

func (s *MongoReadingStore) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.coll.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	return counter.Seq, err
}
