package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const fileBackend = "file"

var _ interfaces.ReadingStore = (*FileReadingStore)(nil)

// FileReadingStore keeps the reading log as a JSON array in a single file.
// Every operation reads the file so several readers see the same log;
// writes go through a temp file and rename.
type FileReadingStore struct {
	mu       sync.Mutex
	path     string
	capacity int
}

func NewFileReadingStore(path string, capacity int) (*FileReadingStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, interfaces.NewStorageError(fileBackend, "init", fmt.Errorf("cannot create data dir: %w", err))
		}
	}
	return &FileReadingStore{path: path, capacity: logCapacity(capacity)}, nil
}

func (s *FileReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	if err := ctx.Err(); err != nil {
		return interfaces.NewStorageError(fileBackend, "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load()
	if err != nil {
		return interfaces.NewStorageError(fileBackend, "append", err)
	}

	readings = append(readings, reading)
	if len(readings) > s.capacity {
		readings = readings[len(readings)-s.capacity:]
	}

	if err := s.save(readings); err != nil {
		return interfaces.NewStorageError(fileBackend, "append", err)
	}
	return nil
}

func (s *FileReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, interfaces.NewStorageError(fileBackend, "latest", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load()
	if err != nil {
		return nil, interfaces.NewStorageError(fileBackend, "latest", err)
	}
	if len(readings) == 0 {
		return nil, interfaces.ErrNotFound
	}
	latest := readings[len(readings)-1]
	return &latest, nil
}

// Ping checks the data directory is writable
func (s *FileReadingStore) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(filepath.Dir(s.path), ".ping-*")
	if err != nil {
		return interfaces.NewStorageError(fileBackend, "ping", err)
	}
	name := f.Name()
	f.Close()
	return interfaces.NewStorageError(fileBackend, "ping", os.Remove(name))
}

func (s *FileReadingStore) Close(ctx context.Context) error { return nil }

// load returns an empty log when the file does not exist yet
func (s *FileReadingStore) load() ([]models.SensorReading, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var readings []models.SensorReading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("corrupt reading log %s: %w", s.path, err)
	}
	return readings, nil
}

func (s *FileReadingStore) save(readings []models.SensorReading) error {
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reading log: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic replaces path with data so readers never see a partial file
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
