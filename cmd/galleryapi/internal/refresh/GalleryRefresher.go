package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/adampresley/familybook/pkg/services"
)

type GalleryRefresher interface {
	Refresh()
	Run()
}

type GalleryRefresherConfig struct {
	Driver      orchestration.Driverer
	Interval    time.Duration
	ShutdownCtx context.Context
}

/*
GalleryRefresherService recomposes the gallery on a timer by starting a
new orchestration instance. A tick is skipped while the instance started
by the previous tick has not finished.
*/
type GalleryRefresherService struct {
	driver      orchestration.Driverer
	interval    time.Duration
	shutdownCtx context.Context

	mu             *sync.Mutex
	lastInstanceID *string
}

func NewGalleryRefresherService(config GalleryRefresherConfig) GalleryRefresherService {
	return GalleryRefresherService{
		driver:         config.Driver,
		interval:       config.Interval,
		shutdownCtx:    config.ShutdownCtx,
		mu:             &sync.Mutex{},
		lastInstanceID: new(string),
	}
}

func (c GalleryRefresherService) Refresh() {
	var (
		err        error
		instance   orchestration.Instance
		instanceID string
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	if *c.lastInstanceID != "" {
		instance, err = c.driver.GetStatus(c.shutdownCtx, *c.lastInstanceID)

		if err == nil && !instance.Status.IsTerminal() {
			slog.Info("gallery refresh already running. skipping...", "instanceID", instance.ID, "phase", instance.Phase)
			return
		}
	}

	if instanceID, err = c.driver.Start(c.shutdownCtx, services.GalleryOrchestratorName); err != nil {
		slog.Error("error starting gallery refresh", "error", err)
		return
	}

	*c.lastInstanceID = instanceID
	slog.Info("gallery refresh started", "instanceID", instanceID)
}

// Run refreshes once, then on every tick until the shutdown context is done.
func (c GalleryRefresherService) Run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Refresh()

	for {
		select {
		case <-c.shutdownCtx.Done():
			return

		case <-ticker.C:
			c.Refresh()
		}
	}
}
