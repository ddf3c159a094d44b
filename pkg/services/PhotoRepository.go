package services

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/familybook/pkg/models"
	"github.com/adampresley/familybook/pkg/storage"
	"github.com/google/uuid"
)

const (
	CoverImageName = "cover"
)

var (
	validImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)

type PhotoRepositorer interface {
	ListAlbumNames(ctx context.Context) ([]string, error)
	ListPhotos(ctx context.Context, albumName string) ([]models.Photo, error)
}

type PhotoRepositoryConfig struct {
	BaseURL   string
	BlobStore storage.BlobStore
	Now       func() time.Time
}

/*
PhotoRepository enumerates albums and photos from a blob store. An album
is a first-level prefix of the container; its photos are the image blobs
under that prefix, excluding the cover image.
*/
type PhotoRepository struct {
	baseURL   string
	blobStore storage.BlobStore
	now       func() time.Time
}

func NewPhotoRepository(config PhotoRepositoryConfig) PhotoRepository {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return PhotoRepository{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		blobStore: config.BlobStore,
		now:       now,
	}
}

/*
ListAlbumNames returns the album names in the container, deduplicated
and sorted by ordinal string comparison.
*/
func (r PhotoRepository) ListAlbumNames(ctx context.Context) ([]string, error) {
	var (
		err      error
		prefixes []string
	)

	if prefixes, err = r.blobStore.ListPrefixes(ctx); err != nil {
		return nil, fmt.Errorf("error listing album prefixes: %w", err)
	}

	seen := map[string]struct{}{}
	result := []string{}

	for _, prefix := range prefixes {
		name := strings.TrimRight(prefix, storage.Separator)
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		result = append(result, name)
	}

	sort.Strings(result)
	return result, nil
}

/*
ListPhotos returns the photos of one album sorted by file name. Only
whitelisted image extensions are kept and the cover image is skipped,
both compared case-insensitively.
*/
func (r PhotoRepository) ListPhotos(ctx context.Context, albumName string) ([]models.Photo, error) {
	var (
		err   error
		blobs []storage.Blob
	)

	if blobs, err = r.blobStore.ListBlobsByPrefix(ctx, albumName+storage.Separator); err != nil {
		return nil, fmt.Errorf("error listing photos in album '%s': %w", albumName, err)
	}

	result := []models.Photo{}

	for _, blob := range blobs {
		fileName := path.Base(blob.Key)

		if !IsImageFile(fileName) || IsCoverImage(fileName) {
			continue
		}

		createdAt := blob.CreatedAt
		if createdAt.IsZero() {
			createdAt = r.now().UTC()
		}

		result = append(result, models.Photo{
			ID:        uuid.NewString(),
			FileName:  fileName,
			URL:       r.blobURL(blob.Key),
			Alt:       AltText(fileName),
			CreatedAt: createdAt,
			SizeBytes: blob.Size,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].FileName < result[j].FileName
	})

	return result, nil
}

func (r PhotoRepository) blobURL(key string) string {
	segments := strings.Split(key, storage.Separator)

	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}

	return r.baseURL + "/" + strings.Join(segments, "/")
}

func IsImageFile(fileName string) bool {
	ext := strings.ToLower(path.Ext(fileName))
	return slices.IsInSlice(ext, validImageExtensions)
}

func IsCoverImage(fileName string) bool {
	return strings.EqualFold(AltText(fileName), CoverImageName)
}

// AltText is the file name without its extension.
func AltText(fileName string) string {
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}
