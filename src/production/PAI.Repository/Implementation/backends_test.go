package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/health"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

// Backends that need a server run only when the matching TEST_* variable is set.

func requireEnv(t *testing.T, name string) string {
	t.Helper()
	v := os.Getenv(name)
	if v == "" {
		t.Skipf("%s not set", name)
	}
	return v
}

// exerciseReadingStore checks the reading log contract against any backend
func exerciseReadingStore(t *testing.T, s interfaces.ReadingStore, capacity int) {
	t.Helper()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := s.Latest(ctx); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("empty Latest: expected ErrNotFound, got %v", err)
	}

	var last models.SensorReading
	for i := 1; i <= capacity+1; i++ {
		last = testReading(i)
		last.ID = uuid.NewString()
		if err := s.Append(ctx, last); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != last.ID || !got.Timestamp.Equal(last.Timestamp) || got.Measurements != last.Measurements {
		t.Errorf("Latest: got %+v, want %+v", got, last)
	}
}

func TestReadingStoreContract(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		exerciseReadingStore(t, NewMemoryReadingStore(5), 5)
	})
	t.Run("file", func(t *testing.T) {
		s, err := NewFileReadingStore(t.TempDir()+"/sensor_data.json", 5)
		if err != nil {
			t.Fatalf("NewFileReadingStore: %v", err)
		}
		exerciseReadingStore(t, s, 5)
	})
}

func TestRedisReadingStore(t *testing.T) {
	addr := requireEnv(t, "TEST_REDIS_ADDR")
	ctx := context.Background()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	key := fmt.Sprintf("plantai:test:%d", time.Now().UnixNano())
	t.Cleanup(func() {
		client.Del(ctx, key)
		client.Close()
	})

	s := NewRedisReadingStore(client, key, 5)
	exerciseReadingStore(t, s, 5)

	if n := client.LLen(ctx, key).Val(); n != 5 {
		t.Errorf("LLEN: got %d, want 5", n)
	}
}

func TestPostgresReadingStore(t *testing.T) {
	dsn := requireEnv(t, "TEST_POSTGRES_DSN")
	ctx := context.Background()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	table := fmt.Sprintf("sensor_readings_test_%d", time.Now().UnixNano())
	if err := health.NewDatabaseManager(db).CreateTables(ctx, table); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}

	s := NewPostgresReadingStore(db, table, 5)
	t.Cleanup(func() {
		db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.table)
		s.Close(ctx)
	})

	exerciseReadingStore(t, s, 5)

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Errorf("rows: got %d, want 5", n)
	}
}

func TestMongoReadingStore(t *testing.T) {
	uri := requireEnv(t, "TEST_MONGO_URI")
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo.Connect: %v", err)
	}
	dbName := fmt.Sprintf("plantai_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		client.Database(dbName).Drop(ctx)
		client.Disconnect(ctx)
	})

	s := NewMongoReadingStore(client, dbName, "sensor_readings", 5, 5*time.Second)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	exerciseReadingStore(t, s, 5)

	n, err := client.Database(dbName).Collection("sensor_readings").CountDocuments(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 5 {
		t.Errorf("documents: got %d, want 5", n)
	}
}

func TestMemcachedLatestCache(t *testing.T) {
	addr := requireEnv(t, "TEST_MEMCACHED_ADDR")
	ctx := context.Background()

	key := fmt.Sprintf("plantai:test:%d", time.Now().UnixNano())
	c := NewMemcachedLatestCache(addr, key, time.Minute)
	t.Cleanup(func() { c.Close() })

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := c.Get(ctx); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("Get on empty cache: expected ErrNotFound, got %v", err)
	}

	want := testReading(7)
	if err := c.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != want.ID || got.Measurements != want.Measurements {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// add-only fill keeps the newer entry
	if err := c.Fill(ctx, testReading(3)); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if got, err := c.Get(ctx); err != nil || got.ID != want.ID {
		t.Fatalf("Fill replaced the entry: got %v, %v", got, err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := c.Fill(ctx, testReading(3)); err != nil {
		t.Fatalf("Fill on empty cache: %v", err)
	}
	if got, err := c.Get(ctx); err != nil || got.ID != "reading-3" {
		t.Fatalf("Fill on empty cache: got %v, %v", got, err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
	if _, err := c.Get(ctx); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("Get after Invalidate: expected ErrNotFound, got %v", err)
	}
}
