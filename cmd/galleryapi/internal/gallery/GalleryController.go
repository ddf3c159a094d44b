package gallery

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/responses"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/viewmodels"
	"github.com/adampresley/familybook/pkg/familybook"
	"github.com/adampresley/familybook/pkg/models"
	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/adampresley/familybook/pkg/services"
	"github.com/goccy/go-json"
)

type GalleryHandlers interface {
	StartGallery(w http.ResponseWriter, r *http.Request)
	InstanceStatus(w http.ResponseWriter, r *http.Request)
	ComposeDirect(w http.ResponseWriter, r *http.Request)
	LatestGallery(w http.ResponseWriter, r *http.Request)
}

type GalleryControllerConfig struct {
	Driver         orchestration.Driverer
	GalleryService services.GalleryServicer
	Guard          familybook.Guard
}

type GalleryController struct {
	driver         orchestration.Driverer
	galleryService services.GalleryServicer
	guard          familybook.Guard
}

func NewGalleryController(config GalleryControllerConfig) GalleryController {
	return GalleryController{
		driver:         config.Driver,
		galleryService: config.GalleryService,
		guard:          config.Guard,
	}
}

/*
GET /api/gallery
*/
func (c GalleryController) StartGallery(w http.ResponseWriter, r *http.Request) {
	var (
		err        error
		instanceID string
	)

	if instanceID, err = c.driver.Start(r.Context(), services.GalleryOrchestratorName); err != nil {
		slog.Error("error starting gallery orchestration", "error", err)
		responses.WriteResult(w, familybook.InternalServerError[any]("unable to start gallery composition"))
		return
	}

	statusURI := statusQueryURI(r, instanceID)
	w.Header().Set("Location", statusURI)

	responses.WriteJSON(w, http.StatusAccepted, viewmodels.OrchestrationStarted{
		ID:                instanceID,
		StatusQueryGetURI: statusURI,
	})
}

/*
GET /api/gallery/instances/{id}
*/
func (c GalleryController) InstanceStatus(w http.ResponseWriter, r *http.Request) {
	var (
		err      error
		instance orchestration.Instance
	)

	instanceID := httphelpers.GetFromRequest[string](r, "id")

	if instance, err = c.driver.GetStatus(r.Context(), instanceID); err != nil {
		if errors.Is(err, orchestration.ErrInstanceNotFound) {
			responses.WriteResult(w, familybook.NotFound[any](fmt.Sprintf("instance '%s' not found", instanceID)))
			return
		}

		slog.Error("error reading orchestration status", "instanceID", instanceID, "error", err)
		responses.WriteResult(w, familybook.InternalServerError[any]("unable to read instance status"))
		return
	}

	status := http.StatusAccepted

	if instance.Status.IsTerminal() {
		status = http.StatusOK
	}

	responses.WriteJSON(w, status, viewmodels.NewInstanceStatus(instance))
}

/*
GET /api/gallery/direct
*/
func (c GalleryController) ComposeDirect(w http.ResponseWriter, r *http.Request) {
	result := familybook.ExecuteErr(c.guard, "compose gallery", func() (models.GalleryConfig, error) {
		return c.galleryService.ComposeGallery(r.Context())
	})

	if !result.IsSuccess() {
		responses.WriteResult(w, result)
		return
	}

	responses.WriteJSON(w, http.StatusOK, result.Value)
}

/*
GET /api/gallery/latest
*/
func (c GalleryController) LatestGallery(w http.ResponseWriter, r *http.Request) {
	var (
		err      error
		instance orchestration.Instance
	)

	if instance, err = c.driver.LatestCompleted(r.Context(), services.GalleryOrchestratorName); err != nil {
		if errors.Is(err, orchestration.ErrInstanceNotFound) {
			responses.WriteResult(w, familybook.NotFound[any]("no gallery has been composed yet"))
			return
		}

		slog.Error("error reading latest gallery", "error", err)
		responses.WriteResult(w, familybook.InternalServerError[any]("unable to read latest gallery"))
		return
	}

	responses.WriteJSON(w, http.StatusOK, json.RawMessage(instance.Output))
}

func statusQueryURI(r *http.Request, instanceID string) string {
	scheme := "http"

	if r.TLS != nil {
		scheme = "https"
	}

	switch forwarded := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); forwarded {
	case "http", "https":
		scheme = forwarded
	}

	return fmt.Sprintf("%s://%s/api/gallery/instances/%s", scheme, r.Host, instanceID)
}
