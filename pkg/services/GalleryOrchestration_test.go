package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adampresley/familybook/pkg/models"
	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/adampresley/familybook/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrationDriver(t *testing.T, store scriptedBlobStore, history orchestration.HistoryStore) (orchestration.Driver, orchestration.LocalDispatcher) {
	t.Helper()

	gallery := NewGalleryOrchestration(GalleryOrchestrationConfig{
		GalleryService: newTestGalleryService(store),
	})

	dispatcher := orchestration.NewLocalDispatcher(orchestration.LocalDispatcherConfig{MaxWorkers: 2})

	driver := orchestration.NewDriver(orchestration.DriverConfig{
		Activities:    gallery.Activities(),
		Dispatcher:    dispatcher,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Orchestrators: gallery.Orchestrators(),
		RetryPolicy: orchestration.RetryPolicy{
			MaxAttempts: 3,
			MinInterval: time.Millisecond,
			MaxInterval: 5 * time.Millisecond,
		},
		Store: history,
	})

	t.Cleanup(func() {
		dispatcher.Stop()
		driver.Stop()
	})

	return driver, dispatcher
}

func waitForTerminal(t *testing.T, driver orchestration.Driver, instanceID string) orchestration.Instance {
	t.Helper()

	var instance orchestration.Instance

	require.Eventually(t, func() bool {
		var err error

		instance, err = driver.GetStatus(context.Background(), instanceID)
		return err == nil && instance.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)

	return instance
}

func TestGalleryOrchestrationProducesGallery(t *testing.T) {
	history := orchestration.NewMemoryHistoryStore()
	driver, _ := newTestOrchestrationDriver(t, newScriptedBlobStore(familyStore()), history)

	id, err := driver.Start(context.Background(), GalleryOrchestratorName)
	require.NoError(t, err)

	instance := waitForTerminal(t, driver, id)
	require.Equal(t, orchestration.StatusCompleted, instance.Status, instance.Error)

	gallery, err := orchestration.DecodeOutput[models.GalleryConfig](instance)
	require.NoError(t, err)

	assert.Equal(t, testBaseURL, gallery.BaseURL)
	require.Len(t, gallery.Albums, 2)
	assert.Equal(t, "Estate 2024", gallery.Albums[0].Name)
	assert.Equal(t, "Natale 2025", gallery.Albums[1].Name)
	assert.Equal(t, "natale-jones.png", gallery.Albums[1].Photos[0].FileName)

	steps, err := history.GetSteps(context.Background(), id)
	require.NoError(t, err)

	keys := make([]string, 0, len(steps))
	for _, step := range steps {
		keys = append(keys, step.StepKey)
	}

	assert.ElementsMatch(t, []string{
		"0001:GetAlbumsActivity",
		"0002:GetAlbumDetailsActivity",
		"0003:GetAlbumDetailsActivity",
		"0004:BuildGalleryConfigActivity",
	}, keys)
}

func TestGalleryOrchestrationEmptyStore(t *testing.T) {
	driver, _ := newTestOrchestrationDriver(t, newScriptedBlobStore(storage.NewMemoryBlobStore()), orchestration.NewMemoryHistoryStore())

	id, err := driver.Start(context.Background(), GalleryOrchestratorName)
	require.NoError(t, err)

	instance := waitForTerminal(t, driver, id)
	require.Equal(t, orchestration.StatusCompleted, instance.Status)
	assert.JSONEq(t, `{"baseUrl":"`+testBaseURL+`","albums":[]}`, instance.Output)
}

func TestGalleryOrchestrationFailsWhenAnAlbumKeepsFailing(t *testing.T) {
	store := newScriptedBlobStore(familyStore())
	store.failures["estate-2024/"] = errors.New("storage timeout")

	driver, _ := newTestOrchestrationDriver(t, store, orchestration.NewMemoryHistoryStore())

	id, err := driver.Start(context.Background(), GalleryOrchestratorName)
	require.NoError(t, err)

	instance := waitForTerminal(t, driver, id)
	assert.Equal(t, orchestration.StatusFailed, instance.Status)
	assert.Contains(t, instance.Error, "storage timeout")
	assert.Empty(t, instance.Output)
}

func TestGalleryOrchestrationRejectsEmptyAlbumNameWithoutRetry(t *testing.T) {
	orchestrationSet := NewGalleryOrchestration(GalleryOrchestrationConfig{
		GalleryService: newTestGalleryService(familyStore()),
	})

	activity := orchestrationSet.Activities()[GetAlbumDetailsActivity]

	_, err := activity(context.Background(), []byte(`""`))
	require.Error(t, err)
	assert.True(t, orchestration.IsNonRetryable(err))
}
