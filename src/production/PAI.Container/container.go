package container

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/health"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/identify"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/images"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/sensor"
	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	messaging "gitlab.com/plantai/plantai.server/src/production/PAI.Messaging"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	implementation "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Implementation"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	mongoClient   *mongo.Client
	store         interfaces.ReadingStore
	publisher     interfaces.AdvisoryPublisher
	imageRepo     interfaces.ImageRepository
	healthChecker *health.HealthChecker

	sensorService *sensor.Service
	imageService  *images.Service
	identifier    *identify.Client

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions, run in reverse order
	cleanupFuncs []func(context.Context) error
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*Container, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}
	return NewContainer(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewContainer creates a container around an already loaded configuration
func NewContainer(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{
		config:        cfg,
		logger:        log,
		healthChecker: health.NewHealthChecker(),
	}
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetHealthChecker returns the health checker; checks are registered as dependencies are built
func (c *Container) GetHealthChecker() *health.HealthChecker {
	return c.healthChecker
}

// GetReadingStore returns the reading store selected by STORAGE_DRIVER,
// wrapped with metrics and, when configured, the latest-reading cache
func (c *Container) GetReadingStore(ctx context.Context) (interfaces.ReadingStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readingStoreLocked(ctx)
}

func (c *Container) readingStoreLocked(ctx context.Context) (interfaces.ReadingStore, error) {
	if c.store != nil {
		return c.store, nil
	}

	driver := c.config.Storage.Driver
	var store interfaces.ReadingStore

	switch driver {
	case config.StorageFile:
		s, err := implementation.NewFileReadingStore(c.config.Storage.ReadingsFile, models.ReadingLogCap)
		if err != nil {
			return nil, err
		}
		store = s

	case config.StorageMemory:
		store = implementation.NewMemoryReadingStore(models.ReadingLogCap)

	case config.StorageMongo:
		client, err := c.mongoClientLocked()
		if err != nil {
			return nil, err
		}
		mcfg := c.config.Storage.Mongo
		s := implementation.NewMongoReadingStore(client, mcfg.Database, mcfg.Collection, models.ReadingLogCap, mcfg.OperationTimeout)
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		store = s

	case config.StoragePostgres:
		db, err := health.ConnectPostgresWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := health.NewDatabaseManager(db).CreateTables(ctx, implementation.DefaultReadingsTable); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
		store = implementation.NewPostgresReadingStore(db, implementation.DefaultReadingsTable, models.ReadingLogCap)

	case config.StorageRedis:
		client, err := health.ConnectRedis(ctx, c.config.Storage.Redis)
		if err != nil {
			return nil, err
		}
		store = implementation.NewRedisReadingStore(client, c.config.Storage.Redis.Key, models.ReadingLogCap)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}

	base := store
	c.cleanupFuncs = append(c.cleanupFuncs, base.Close)
	c.healthChecker.Register("store", base.Ping)

	store = implementation.NewInstrumentedReadingStore(store, driver)

	if c.config.Cache.Driver == config.CacheMemcached {
		cache := implementation.NewMemcachedLatestCache(c.config.Cache.MemcachedAddr, c.config.Cache.Key, c.config.Cache.TTL)
		c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error { return cache.Close() })
		c.healthChecker.Register("cache", cache.Ping)
		store = implementation.NewCachedReadingStore(store, cache, c.logger)
	}

	c.logger.Info().Str("driver", driver).Str("cache", c.config.Cache.Driver).Msg("Reading store initialized")
	c.store = store
	return c.store, nil
}

// GetPublisher returns the advisory publisher selected by PUBLISHER_DRIVER
func (c *Container) GetPublisher() (interfaces.AdvisoryPublisher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publisherLocked()
}

func (c *Container) publisherLocked() (interfaces.AdvisoryPublisher, error) {
	if c.publisher != nil {
		return c.publisher, nil
	}

	var publisher interfaces.AdvisoryPublisher
	switch c.config.Publisher.Driver {
	case config.PublisherNone:
		publisher = messaging.NoopPublisher{}
	case config.PublisherMQTT:
		p, err := messaging.ConnectMQTTPublisher(c.config.MQTT, c.config.Publisher.AdvisoryTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to connect advisory publisher: %w", err)
		}
		publisher = p
	case config.PublisherKafka:
		p, err := messaging.ConnectKafkaPublisher(c.config.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to connect advisory publisher: %w", err)
		}
		publisher = p
	default:
		return nil, fmt.Errorf("unknown publisher driver %q", c.config.Publisher.Driver)
	}

	if c.config.Publisher.Driver != config.PublisherNone {
		c.healthChecker.Register("publisher", publisher.Ping)
	}
	c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error { return publisher.Close() })
	c.publisher = publisher
	return c.publisher, nil
}

// GetImageRepository returns Mongo-backed image metadata when the reading log is in Mongo,
// otherwise a metadata file in the upload directory
func (c *Container) GetImageRepository() (interfaces.ImageRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imageRepositoryLocked()
}

func (c *Container) imageRepositoryLocked() (interfaces.ImageRepository, error) {
	if c.imageRepo != nil {
		return c.imageRepo, nil
	}

	if c.config.Storage.Driver == config.StorageMongo {
		client, err := c.mongoClientLocked()
		if err != nil {
			return nil, err
		}
		mcfg := c.config.Storage.Mongo
		c.imageRepo = implementation.NewMongoImageRepository(
			client.Database(mcfg.Database).Collection(mcfg.ImageCollection),
			mcfg.OperationTimeout,
		)
		return c.imageRepo, nil
	}

	repo, err := implementation.NewFileImageRepository(filepath.Join(c.config.Upload.Dir, c.config.Upload.MetadataFile))
	if err != nil {
		return nil, err
	}
	c.imageRepo = repo
	return c.imageRepo, nil
}

// GetSensorService returns the advisory pipeline wired to the store and publisher
func (c *Container) GetSensorService(ctx context.Context) (*sensor.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sensorService != nil {
		return c.sensorService, nil
	}

	store, err := c.readingStoreLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reading store: %w", err)
	}
	publisher, err := c.publisherLocked()
	if err != nil {
		return nil, err
	}

	c.sensorService = sensor.NewService(store, publisher, c.logger, c.config.SensorSource)
	return c.sensorService, nil
}

// GetImageService returns the upload service
func (c *Container) GetImageService() (*images.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.imageService != nil {
		return c.imageService, nil
	}

	repo, err := c.imageRepositoryLocked()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image repository: %w", err)
	}
	svc, err := images.NewService(repo, c.config.Upload.Dir, c.config.Upload.MaxBytes)
	if err != nil {
		return nil, err
	}
	c.imageService = svc
	return c.imageService, nil
}

// GetIdentifier returns the identification client; it reports unconfigured when IDENTIFIER_URL is empty
func (c *Container) GetIdentifier() *identify.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identifier == nil {
		c.identifier = identify.NewClient(c.config.Identifier.URL, c.config.Identifier.Timeout)
	}
	return c.identifier
}

func (c *Container) mongoClientLocked() (*mongo.Client, error) {
	if c.mongoClient != nil {
		return c.mongoClient, nil
	}

	client, err := health.ConnectMongoWithTimeout(c.config.Storage.Mongo)
	if err != nil {
		return nil, err
	}
	c.mongoClient = client
	c.cleanupFuncs = append(c.cleanupFuncs, client.Disconnect)
	return c.mongoClient, nil
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	c.logger.Info().Msg("Shutting down container...")

	// Execute cleanup functions in reverse order
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info().Msg("Container shutdown complete")
	return nil
}
