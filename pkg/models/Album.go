package models

import (
	"github.com/goccy/go-json"
)

type Album struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	CoverImageURL string  `json:"coverImageUrl"`
	Photos        []Photo `json:"photos"`
}

// PhotoCount is derived from Photos and never stored.
func (a Album) PhotoCount() int {
	return len(a.Photos)
}

// TotalSizeBytes sums the size of every photo in the album.
func (a Album) TotalSizeBytes() int64 {
	var total int64

	for _, photo := range a.Photos {
		total += photo.SizeBytes
	}

	return total
}

func (a Album) MarshalJSON() ([]byte, error) {
	photos := a.Photos
	if photos == nil {
		photos = []Photo{}
	}

	return json.Marshal(struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		Description   string  `json:"description"`
		CoverImageURL string  `json:"coverImageUrl"`
		Photos        []Photo `json:"photos"`
		PhotoCount    int     `json:"photoCount"`
	}{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		CoverImageURL: a.CoverImageURL,
		Photos:        photos,
		PhotoCount:    len(photos),
	})
}
