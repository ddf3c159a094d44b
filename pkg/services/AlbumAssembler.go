package services

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adampresley/familybook/pkg/models"
)

const (
	TitleSeparator = "-"
)

type AlbumAssemblerConfig struct {
	BaseURL string
}

// AlbumAssembler turns an album name and its photos into a display-ready album.
type AlbumAssembler struct {
	baseURL string
}

func NewAlbumAssembler(config AlbumAssemblerConfig) AlbumAssembler {
	return AlbumAssembler{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
	}
}

/*
BuildAlbum composes the album record. Photos are kept as given. The cover
URL follows the cover.jpg convention and is not checked for existence.
*/
func (a AlbumAssembler) BuildAlbum(albumName string, photos []models.Photo) models.Album {
	if photos == nil {
		photos = []models.Photo{}
	}

	return models.Album{
		ID:            albumName,
		Name:          FormatTitle(albumName),
		Description:   Describe(len(photos)),
		CoverImageURL: a.CoverImageURL(albumName),
		Photos:        photos,
	}
}

func (a AlbumAssembler) CoverImageURL(albumName string) string {
	return fmt.Sprintf("%s/%s/%s.jpg", a.baseURL, url.PathEscape(albumName), CoverImageName)
}

/*
FormatTitle turns "natale-2025" into "Natale 2025". Empty segments, from
leading, trailing or doubled separators, are skipped. A name made only of
separators is returned unchanged.
*/
func FormatTitle(albumName string) string {
	words := []string{}

	for _, segment := range strings.Split(albumName, TitleSeparator) {
		if segment == "" {
			continue
		}

		first, size := utf8.DecodeRuneInString(segment)
		words = append(words, string(unicode.ToUpper(first))+segment[size:])
	}

	if len(words) == 0 {
		return albumName
	}

	return strings.Join(words, " ")
}

func Describe(photoCount int) string {
	if photoCount == 1 {
		return "Album with 1 photo"
	}

	return fmt.Sprintf("Album with %d photos", photoCount)
}
