package interfaces

import (
	"context"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

type ImageRepository interface {
	SaveImage(ctx context.Context, image models.ImageMetadata) error
	GetImage(ctx context.Context, id string) (*models.ImageMetadata, error)
	ListImages(ctx context.Context) ([]models.ImageMetadata, error)
}
