package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adampresley/familybook/pkg/models"
	"github.com/alitto/pond/v2"
	"github.com/dustin/go-humanize"
)

const (
	defaultMaxAlbumWorkers = 8
)

type GalleryServicer interface {
	ListAlbumNames(ctx context.Context) ([]string, error)
	GetAlbum(ctx context.Context, albumName string) (models.Album, error)
	BuildGalleryConfig(albums []models.Album) models.GalleryConfig
	ComposeGallery(ctx context.Context) (models.GalleryConfig, error)
}

type GalleryServiceConfig struct {
	AlbumAssembler  AlbumAssembler
	BaseURL         string
	MaxAlbumWorkers int
	PhotoRepository PhotoRepositorer
}

type GalleryService struct {
	albumAssembler  AlbumAssembler
	baseURL         string
	maxAlbumWorkers int
	photoRepository PhotoRepositorer
}

func NewGalleryService(config GalleryServiceConfig) GalleryService {
	if config.MaxAlbumWorkers <= 0 {
		config.MaxAlbumWorkers = defaultMaxAlbumWorkers
	}

	return GalleryService{
		albumAssembler:  config.AlbumAssembler,
		baseURL:         strings.TrimRight(config.BaseURL, "/"),
		maxAlbumWorkers: config.MaxAlbumWorkers,
		photoRepository: config.PhotoRepository,
	}
}

func (s GalleryService) ListAlbumNames(ctx context.Context) ([]string, error) {
	return s.photoRepository.ListAlbumNames(ctx)
}

func (s GalleryService) GetAlbum(ctx context.Context, albumName string) (models.Album, error) {
	var (
		err    error
		photos []models.Photo
	)

	if photos, err = s.photoRepository.ListPhotos(ctx, albumName); err != nil {
		return models.Album{}, err
	}

	return s.albumAssembler.BuildAlbum(albumName, photos), nil
}

func (s GalleryService) BuildGalleryConfig(albums []models.Album) models.GalleryConfig {
	if albums == nil {
		albums = []models.Album{}
	}

	return models.GalleryConfig{
		BaseURL: s.baseURL,
		Albums:  albums,
	}
}

/*
ComposeGallery lists the albums, then fetches every album on a bounded
pool. Results are written by index, so the album order always matches the
listing no matter which fetch finishes first. Any failed fetch fails the
whole composition.
*/
func (s GalleryService) ComposeGallery(ctx context.Context) (models.GalleryConfig, error) {
	var (
		err        error
		albumNames []string
	)

	if albumNames, err = s.ListAlbumNames(ctx); err != nil {
		return models.GalleryConfig{}, err
	}

	albums := make([]models.Album, len(albumNames))

	if len(albumNames) > 0 {
		pool := pond.NewPool(min(s.maxAlbumWorkers, len(albumNames)), pond.WithContext(ctx))
		group := pool.NewGroup()

		for index, albumName := range albumNames {
			group.SubmitErr(func() error {
				album, err := s.GetAlbum(ctx, albumName)
				if err != nil {
					return fmt.Errorf("error fetching album '%s': %w", albumName, err)
				}

				albums[index] = album
				return nil
			})
		}

		err = group.Wait()
		_ = pool.Stop().Wait()

		if err != nil {
			return models.GalleryConfig{}, err
		}
	}

	result := s.BuildGalleryConfig(albums)

	slog.Info("gallery composed",
		"albums", len(result.Albums),
		"photos", result.PhotoCount(),
		"totalSize", humanize.Bytes(uint64(totalSize(result.Albums))),
	)

	return result, nil
}

func totalSize(albums []models.Album) int64 {
	var total int64

	for _, album := range albums {
		total += album.TotalSizeBytes()
	}

	return total
}
