package familybook

import (
	"time"

	"github.com/google/uuid"
)

type Family struct {
	ID              uuid.UUID `json:"id" validate:"required"`
	Name            string    `json:"name" validate:"required,min=1,max=120,notblank"`
	CreatedDate     time.Time `json:"createdDate" validate:"required"`
	LastUpdatedDate time.Time `json:"lastUpdatedDate" validate:"required,gtefield=CreatedDate"`
}

// NewFamily builds a family and rejects it with a *ValidationError when any rule fails.
func NewFamily(id uuid.UUID, name string, createdDate, lastUpdatedDate time.Time) (Family, error) {
	family := Family{
		ID:              id,
		Name:            name,
		CreatedDate:     createdDate,
		LastUpdatedDate: lastUpdatedDate,
	}

	return family, defaultValidator.Validate(family)
}
