package familybook

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID              uuid.UUID `json:"id" validate:"required"`
	FamilyID        uuid.UUID `json:"familyId" validate:"required"`
	FirstName       string    `json:"firstName" validate:"required,min=1,max=120,notblank"`
	LastName        string    `json:"lastName" validate:"required,min=1,max=120,notblank"`
	BirthDate       time.Time `json:"birthDate" validate:"required,notfuture,maxage=130"`
	CreatedDate     time.Time `json:"createdDate" validate:"required"`
	LastUpdatedDate time.Time `json:"lastUpdatedDate" validate:"required,gtefield=CreatedDate"`
}

func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// NewMember builds a member and rejects it with a *ValidationError when any rule fails.
func NewMember(id, familyID uuid.UUID, firstName, lastName string, birthDate, createdDate, lastUpdatedDate time.Time) (Member, error) {
	member := Member{
		ID:              id,
		FamilyID:        familyID,
		FirstName:       firstName,
		LastName:        lastName,
		BirthDate:       birthDate,
		CreatedDate:     createdDate,
		LastUpdatedDate: lastUpdatedDate,
	}

	return member, defaultValidator.Validate(member)
}
