package paimodels

import "time"

// ImageMetadata describes one uploaded plant image
type ImageMetadata struct {
	ID               string    `bson:"id" json:"id"`
	OriginalFilename string    `bson:"original_filename" json:"original_filename"`
	StoredPath       string    `bson:"stored_path" json:"stored_path"`
	FileSize         int64     `bson:"file_size" json:"file_size"`
	UploadTimestamp  time.Time `bson:"upload_timestamp" json:"upload_timestamp"`
	FileType         string    `bson:"file_type" json:"file_type"`
}
