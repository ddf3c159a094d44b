package familybook

import (
	"time"

	"github.com/google/uuid"
)

type PhotoStatus string

const (
	PhotoStatusUploading  PhotoStatus = "Uploading"
	PhotoStatusProcessing PhotoStatus = "Processing"
	PhotoStatusReady      PhotoStatus = "Ready"
	PhotoStatusFailed     PhotoStatus = "Failed"
)

const (
	MaxPhotoSizeBytes int64 = 25 * 1024 * 1024

	// publication dates may run slightly ahead of the server clock
	publicationClockSkew = 5 * time.Minute
	publicationLeadTime  = 24 * time.Hour
)

type Photo struct {
	ID               uuid.UUID   `json:"id" validate:"required"`
	MemberID         uuid.UUID   `json:"memberId" validate:"required"`
	AlbumID          uuid.UUID   `json:"albumId" validate:"required"`
	Location         string      `json:"location,omitempty" validate:"max=200"`
	Description      string      `json:"description,omitempty" validate:"max=2000"`
	PublicationDate  time.Time   `json:"publicationDate" validate:"required"`
	CreatedDate      time.Time   `json:"createdDate" validate:"required"`
	LastUpdatedDate  time.Time   `json:"lastUpdatedDate" validate:"required,gtefield=CreatedDate"`
	OriginalBlobKey  string      `json:"originalBlobKey" validate:"required,min=1,max=500"`
	ThumbnailBlobKey string      `json:"thumbnailBlobKey" validate:"required,min=1,max=500"`
	ContentType      string      `json:"contentType" validate:"required,oneof=image/jpeg image/png image/webp"`
	SizeBytes        int64       `json:"sizeBytes" validate:"gt=0,max=26214400"`
	Status           PhotoStatus `json:"status" validate:"required,oneof=Uploading Processing Ready Failed"`
}

// NewPhoto validates a fully populated photo, returning a *ValidationError when any rule fails.
func NewPhoto(photo Photo) (Photo, error) {
	return photo, defaultValidator.Validate(photo)
}
