package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

var (
	_ interfaces.ImageRepository = (*FileImageRepository)(nil)
	_ interfaces.ImageRepository = (*MongoImageRepository)(nil)
)

// FileImageRepository keeps image metadata as a JSON array next to the uploads
type FileImageRepository struct {
	mu   sync.Mutex
	path string
}

func NewFileImageRepository(path string) (*FileImageRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, interfaces.NewStorageError(fileBackend, "init", err)
	}
	return &FileImageRepository{path: path}, nil
}

func (r *FileImageRepository) SaveImage(ctx context.Context, image models.ImageMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, err := r.load()
	if err != nil {
		return interfaces.NewStorageError(fileBackend, "save_image", err)
	}
	images = append(images, image)

	data, err := json.MarshalIndent(images, "", "  ")
	if err != nil {
		return interfaces.NewStorageError(fileBackend, "save_image", err)
	}
	return interfaces.NewStorageError(fileBackend, "save_image", writeFileAtomic(r.path, data))
}

func (r *FileImageRepository) GetImage(ctx context.Context, id string) (*models.ImageMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, err := r.load()
	if err != nil {
		return nil, interfaces.NewStorageError(fileBackend, "get_image", err)
	}
	for i := range images {
		if images[i].ID == id {
			return &images[i], nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *FileImageRepository) ListImages(ctx context.Context) ([]models.ImageMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, err := r.load()
	if err != nil {
		return nil, interfaces.NewStorageError(fileBackend, "list_images", err)
	}
	sortNewestFirst(images)
	return images, nil
}

func (r *FileImageRepository) load() ([]models.ImageMetadata, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return []models.ImageMetadata{}, nil
	}
	if err != nil {
		return nil, err
	}
	var images []models.ImageMetadata
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("corrupt image metadata %s: %w", r.path, err)
	}
	return images, nil
}

// MongoImageRepository keeps image metadata in a MongoDB collection
type MongoImageRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoImageRepository(coll *mongo.Collection, timeout time.Duration) *MongoImageRepository {
	return &MongoImageRepository{coll: coll, timeout: timeout}
}

func (r *MongoImageRepository) SaveImage(ctx context.Context, image models.ImageMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, image)
	return interfaces.NewStorageError(mongoBackend, "save_image", err)
}

func (r *MongoImageRepository) GetImage(ctx context.Context, id string) (*models.ImageMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var image models.ImageMetadata
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&image)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, interfaces.NewStorageError(mongoBackend, "get_image", err)
	}
	return &image, nil
}

func (r *MongoImageRepository) ListImages(ctx context.Context) ([]models.ImageMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "upload_timestamp", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, interfaces.NewStorageError(mongoBackend, "list_images", err)
	}
	defer cursor.Close(ctx)

	images := make([]models.ImageMetadata, 0)
	if err := cursor.All(ctx, &images); err != nil {
		return nil, interfaces.NewStorageError(mongoBackend, "list_images", err)
	}
	return images, nil
}

func sortNewestFirst(images []models.ImageMetadata) {
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].UploadTimestamp.After(images[j].UploadTimestamp)
	})
}
