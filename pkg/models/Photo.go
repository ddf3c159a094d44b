package models

import (
	"time"
)

/*
Photo is one image blob found while enumerating an album. It is rebuilt
on every listing; ID is a fresh opaque token each time and must not be
used to correlate photos across listings.
*/
type Photo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	URL       string    `json:"url"`
	Alt       string    `json:"alt"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes"`
}
