package familybook

import (
	"time"

	"github.com/google/uuid"
)

/*
Album is the stored album entity owned by a family. It is distinct from
models.Album, which is the composed view of a storage folder.
*/
type Album struct {
	ID              uuid.UUID `json:"id" validate:"required"`
	FamilyID        uuid.UUID `json:"familyId" validate:"required"`
	Name            string    `json:"name" validate:"required,min=1,max=120,notblank"`
	CreatedDate     time.Time `json:"createdDate" validate:"required"`
	LastUpdatedDate time.Time `json:"lastUpdatedDate" validate:"required,gtefield=CreatedDate"`
}

// NewAlbum builds an album and rejects it with a *ValidationError when any rule fails.
func NewAlbum(id, familyID uuid.UUID, name string, createdDate, lastUpdatedDate time.Time) (Album, error) {
	album := Album{
		ID:              id,
		FamilyID:        familyID,
		Name:            name,
		CreatedDate:     createdDate,
		LastUpdatedDate: lastUpdatedDate,
	}

	return album, defaultValidator.Validate(album)
}
