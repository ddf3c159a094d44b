package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adampresley/familybook/pkg/models"
	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/dustin/go-humanize"
)

const (
	GalleryOrchestratorName = "GetGalleryOrchestrator"

	GetAlbumsActivity          = "GetAlbumsActivity"
	GetAlbumDetailsActivity    = "GetAlbumDetailsActivity"
	BuildGalleryConfigActivity = "BuildGalleryConfigActivity"

	PhaseListingAlbums        orchestration.Phase = "ListingAlbums"
	PhaseFetchingAlbumDetails orchestration.Phase = "FetchingAlbumDetails"
	PhaseBuildingConfig       orchestration.Phase = "BuildingConfig"
)

type GalleryOrchestrationConfig struct {
	GalleryService GalleryServicer
}

/*
GalleryOrchestration is the durable form of ComposeGallery: list the
albums, fetch every album as its own activity, then build the gallery
document.
*/
type GalleryOrchestration struct {
	galleryService GalleryServicer
}

func NewGalleryOrchestration(config GalleryOrchestrationConfig) GalleryOrchestration {
	return GalleryOrchestration{
		galleryService: config.GalleryService,
	}
}

func (g GalleryOrchestration) Activities() map[string]orchestration.Activity {
	return map[string]orchestration.Activity{
		GetAlbumsActivity:          orchestration.ActivityFunc(g.getAlbums),
		GetAlbumDetailsActivity:    orchestration.ActivityFunc(g.getAlbumDetails),
		BuildGalleryConfigActivity: orchestration.ActivityFunc(g.buildGalleryConfig),
	}
}

func (g GalleryOrchestration) Orchestrators() map[string]orchestration.OrchestratorFunc {
	return map[string]orchestration.OrchestratorFunc{
		GalleryOrchestratorName: g.Orchestrate,
	}
}

func (g GalleryOrchestration) Orchestrate(ctx context.Context, oc *orchestration.Context) (any, error) {
	var (
		err        error
		albumNames []string
		albums     []models.Album
		gallery    models.GalleryConfig
	)

	logger := oc.Logger()
	logger.Info("starting gallery orchestration")

	if err = oc.SetPhase(ctx, PhaseListingAlbums); err != nil {
		return nil, err
	}

	if albumNames, err = orchestration.CallActivity[[]string](ctx, oc, GetAlbumsActivity, nil); err != nil {
		return nil, err
	}

	logger.Info("found albums, fetching details", "count", len(albumNames))

	if err = oc.SetPhase(ctx, PhaseFetchingAlbumDetails); err != nil {
		return nil, err
	}

	if albums, err = orchestration.FanOut[string, models.Album](ctx, oc, GetAlbumDetailsActivity, albumNames); err != nil {
		return nil, err
	}

	logger.Info("fetched details for all albums")

	if err = oc.SetPhase(ctx, PhaseBuildingConfig); err != nil {
		return nil, err
	}

	if gallery, err = orchestration.CallActivity[models.GalleryConfig](ctx, oc, BuildGalleryConfigActivity, albums); err != nil {
		return nil, err
	}

	logger.Info("gallery orchestration completed", "albums", len(gallery.Albums), "photos", gallery.PhotoCount())
	return gallery, nil
}

func (g GalleryOrchestration) getAlbums(ctx context.Context, _ struct{}) ([]string, error) {
	albumNames, err := g.galleryService.ListAlbumNames(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("listed albums", "count", len(albumNames))
	return albumNames, nil
}

func (g GalleryOrchestration) getAlbumDetails(ctx context.Context, albumName string) (models.Album, error) {
	if albumName == "" {
		return models.Album{}, orchestration.NonRetryable(fmt.Errorf("album name is required"))
	}

	album, err := g.galleryService.GetAlbum(ctx, albumName)
	if err != nil {
		return album, err
	}

	slog.Info("fetched album", "album", albumName, "photos", album.PhotoCount(), "size", humanize.Bytes(uint64(album.TotalSizeBytes())))
	return album, nil
}

func (g GalleryOrchestration) buildGalleryConfig(ctx context.Context, albums []models.Album) (models.GalleryConfig, error) {
	gallery := g.galleryService.BuildGalleryConfig(albums)

	slog.Info("gallery config built", "albums", len(gallery.Albums), "totalSize", humanize.Bytes(uint64(totalSize(gallery.Albums))))
	return gallery, nil
}
