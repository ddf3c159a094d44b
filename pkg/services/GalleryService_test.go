package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adampresley/familybook/pkg/models"
	"github.com/adampresley/familybook/pkg/storage"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeGalleryFamilyScenario(t *testing.T) {
	service := newTestGalleryService(familyStore())

	gallery, err := service.ComposeGallery(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testBaseURL, gallery.BaseURL)
	require.Len(t, gallery.Albums, 2)

	assert.Equal(t, "Estate 2024", gallery.Albums[0].Name)
	assert.Equal(t, 1, gallery.Albums[0].PhotoCount())

	assert.Equal(t, "Natale 2025", gallery.Albums[1].Name)
	assert.Equal(t, 2, gallery.Albums[1].PhotoCount())
	assert.Equal(t, "natale-jones.png", gallery.Albums[1].Photos[0].FileName)
	assert.Equal(t, "natale.png", gallery.Albums[1].Photos[1].FileName)
	assert.Equal(t, testBaseURL+"/natale-2025/cover.jpg", gallery.Albums[1].CoverImageURL)
}

func TestComposeGalleryKeepsListingOrderWhenFetchesFinishOutOfOrder(t *testing.T) {
	memory := storage.NewMemoryBlobStore()
	names := []string{"a-album", "b-album", "c-album", "d-album"}

	for _, name := range names {
		memory.Put(name+"/photo.jpg", 1, testCreatedAt)
	}

	store := newScriptedBlobStore(memory)
	store.delays["a-album/"] = 60 * time.Millisecond
	store.delays["b-album/"] = 40 * time.Millisecond
	store.delays["c-album/"] = 20 * time.Millisecond

	service := newTestGalleryService(store)

	gallery, err := service.ComposeGallery(context.Background())
	require.NoError(t, err)
	require.Len(t, gallery.Albums, len(names))

	for index, name := range names {
		assert.Equal(t, name, gallery.Albums[index].ID)
	}
}

func TestComposeGalleryEmptyStore(t *testing.T) {
	service := newTestGalleryService(storage.NewMemoryBlobStore())

	gallery, err := service.ComposeGallery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBaseURL, gallery.BaseURL)
	assert.NotNil(t, gallery.Albums)
	assert.Empty(t, gallery.Albums)

	b, err := json.Marshal(gallery)
	require.NoError(t, err)
	assert.JSONEq(t, `{"baseUrl":"`+testBaseURL+`","albums":[]}`, string(b))
}

func TestComposeGalleryIsRepeatableExceptForPhotoIDs(t *testing.T) {
	service := newTestGalleryService(familyStore())

	first, err := service.ComposeGallery(context.Background())
	require.NoError(t, err)

	second, err := service.ComposeGallery(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Albums[0].Photos[0].ID, second.Albums[0].Photos[0].ID)

	assert.Equal(t, withoutPhotoIDs(first), withoutPhotoIDs(second))
}

func TestComposeGalleryFailsWhenOneAlbumFails(t *testing.T) {
	boom := errors.New("storage timeout")
	store := newScriptedBlobStore(familyStore())
	store.failures["natale-2025/"] = boom

	service := newTestGalleryService(store)

	gallery, err := service.ComposeGallery(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "natale-2025")
	assert.Empty(t, gallery.Albums)
}

func TestComposeGalleryHonorsCancellation(t *testing.T) {
	store := newScriptedBlobStore(familyStore())
	store.delays["estate-2024/"] = time.Second

	service := newTestGalleryService(store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := service.ComposeGallery(ctx)
	assert.Error(t, err)
}

func TestGalleryConfigJSONShape(t *testing.T) {
	service := newTestGalleryService(familyStore())

	gallery, err := service.ComposeGallery(context.Background())
	require.NoError(t, err)

	b, err := json.Marshal(gallery)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))

	albums := decoded["albums"].([]any)
	album := albums[1].(map[string]any)

	assert.Equal(t, "natale-2025", album["id"])
	assert.Equal(t, float64(2), album["photoCount"])
	assert.Contains(t, album, "coverImageUrl")
	assert.Contains(t, album, "description")

	photo := album["photos"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "fileName", "url", "alt", "createdAt", "sizeBytes"} {
		assert.Contains(t, photo, key)
	}
}

func withoutPhotoIDs(gallery models.GalleryConfig) models.GalleryConfig {
	albums := make([]models.Album, len(gallery.Albums))

	for index, album := range gallery.Albums {
		photos := make([]models.Photo, len(album.Photos))

		for photoIndex, photo := range album.Photos {
			photo.ID = ""
			photos[photoIndex] = photo
		}

		album.Photos = photos
		albums[index] = album
	}

	gallery.Albums = albums
	return gallery
}
