package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	metrics "gitlab.com/plantai/plantai.server/src/production/PAI.Metrics"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

// AllowedExtensions lists the accepted image types, lowercase, without the dot
var AllowedExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "bmp": {}, "tiff": {}, "webp": {},
}

var (
	ErrNoFile     = errors.New("No image file provided")
	ErrNoFilename = errors.New("No file selected")
	// ErrUnknownImage is returned when a path does not name an uploaded image
	ErrUnknownImage = errors.New("image is not a known upload")
)

// UnsupportedTypeError is returned for files outside AllowedExtensions
type UnsupportedTypeError struct {
	Filename string
}

func (e *UnsupportedTypeError) Error() string { return "File type not allowed" }

// TooLargeError is returned when an upload exceeds the size limit
type TooLargeError struct {
	Size     int64
	MaxBytes int64
}

func (e *TooLargeError) Error() string { return "File too large" }

// MaxSizeMB is the limit in whole mebibytes, as reported to clients
func (e *TooLargeError) MaxSizeMB() int64 { return e.MaxBytes / (1024 * 1024) }

// Service stores uploaded plant images on disk and records their metadata
type Service struct {
	repo     interfaces.ImageRepository
	dir      string
	maxBytes int64

	now   func() time.Time
	newID func() string
}

func NewService(repo interfaces.ImageRepository, dir string, maxBytes int64) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create upload dir: %w", err)
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// AllowedTypes returns the accepted extensions in a stable order
func AllowedTypes() []string {
	types := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		types = append(types, ext)
	}
	sort.Strings(types)
	return types
}

// MaxBytes is the configured upload limit
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Save validates and stores one uploaded file
func (s *Service) Save(ctx context.Context, fh *multipart.FileHeader) (*models.ImageMetadata, error) {
	if fh == nil {
		return nil, ErrNoFile
	}
	if fh.Filename == "" {
		return nil, ErrNoFilename
	}
	ext, ok := allowedExtension(fh.Filename)
	if !ok {
		return nil, &UnsupportedTypeError{Filename: fh.Filename}
	}
	if fh.Size > s.maxBytes {
		return nil, &TooLargeError{Size: fh.Size, MaxBytes: s.maxBytes}
	}

	now := s.now()
	id := s.newID()
	storedName := fmt.Sprintf("%s_%s_%s",
		now.Format("20060102_150405"),
		strings.ReplaceAll(id, "-", "")[:8],
		secureFilename(fh.Filename, ext),
	)
	storedPath := filepath.Join(s.dir, storedName)

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	written, err := writeLimited(storedPath, src, s.maxBytes)
	if err != nil {
		return nil, err
	}

	meta := models.ImageMetadata{
		ID:               id,
		OriginalFilename: fh.Filename,
		StoredPath:       storedPath,
		FileSize:         written,
		UploadTimestamp:  now.UTC(),
		FileType:         ext,
	}
	if err := s.repo.SaveImage(ctx, meta); err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	metrics.ImagesUploadedTotal.Inc()
	return &meta, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.ImageMetadata, error) {
	return s.repo.GetImage(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.ImageMetadata, error) {
	return s.repo.ListImages(ctx)
}

// ResolvePath returns the stored path of an uploaded image, by id or by path.
// A path is accepted only if it matches the stored path of a known upload.
func (s *Service) ResolvePath(ctx context.Context, id, path string) (string, error) {
	if id != "" {
		meta, err := s.repo.GetImage(ctx, id)
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", ErrUnknownImage
		}
		if err != nil {
			return "", err
		}
		return meta.StoredPath, nil
	}

	all, err := s.repo.ListImages(ctx)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(path)
	for _, meta := range all {
		if filepath.Clean(meta.StoredPath) == clean || filepath.Base(meta.StoredPath) == clean {
			return meta.StoredPath, nil
		}
	}
	return "", ErrUnknownImage
}

// writeLimited copies at most limit bytes; a longer stream is rejected and removed
func writeLimited(path string, src io.Reader, limit int64) (int64, error) {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	written, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if written > limit {
		os.Remove(path)
		return 0, &TooLargeError{Size: written, MaxBytes: limit}
	}
	return written, nil
}

func allowedExtension(filename string) (string, bool) {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return "", false
	}
	ext := strings.ToLower(filename[i+1:])
	_, ok := AllowedExtensions[ext]
	return ext, ok
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// secureFilename reduces a client filename to a safe ASCII basename
func secureFilename(name, ext string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" || !strings.Contains(name, ".") {
		return "upload." + ext
	}
	return name
}
