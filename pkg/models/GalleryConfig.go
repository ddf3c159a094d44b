package models

import (
	"github.com/goccy/go-json"
)

/*
GalleryConfig is the document handed to the presentation layer. Albums
keep the order in which album names were listed.
*/
type GalleryConfig struct {
	BaseURL string  `json:"baseUrl"`
	Albums  []Album `json:"albums"`
}

func (g GalleryConfig) MarshalJSON() ([]byte, error) {
	type gallery GalleryConfig

	out := gallery(g)
	if out.Albums == nil {
		out.Albums = []Album{}
	}

	return json.Marshal(out)
}

// PhotoCount returns the number of photos across all albums.
func (g GalleryConfig) PhotoCount() int {
	total := 0

	for _, album := range g.Albums {
		total += album.PhotoCount()
	}

	return total
}
