package validation

import (
	"fmt"
	"io"
	"net/http"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/responses"
	"github.com/adampresley/familybook/pkg/familybook"
	"github.com/goccy/go-json"
)

const (
	maxBodyBytes = 1 << 20
)

type ValidationHandlers interface {
	ValidateEntity(w http.ResponseWriter, r *http.Request)
}

type ValidationControllerConfig struct {
	Guard     familybook.Guard
	Validator familybook.Validator
}

type ValidationController struct {
	guard     familybook.Guard
	validator familybook.Validator
}

func NewValidationController(config ValidationControllerConfig) ValidationController {
	return ValidationController{
		guard:     config.Guard,
		validator: config.Validator,
	}
}

/*
POST /api/validate/{entity}
*/
func (c ValidationController) ValidateEntity(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		b      []byte
		entity any
	)

	kind := httphelpers.GetFromRequest[string](r, "entity")

	if entity, err = newEntity(kind); err != nil {
		responses.WriteResult(w, familybook.NotFound[any](err.Error()))
		return
	}

	if b, err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes)); err != nil {
		responses.WriteResult(w, familybook.BadRequest[any](familybook.Error{Message: "unable to read request body"}))
		return
	}

	if err = json.Unmarshal(b, entity); err != nil {
		responses.WriteResult(w, familybook.BadRequest[any](familybook.Error{Message: fmt.Sprintf("invalid %s document: %s", kind, err.Error())}))
		return
	}

	result := familybook.ExecuteErr(c.guard, "validate "+kind, func() (any, error) {
		return entity, c.validator.Validate(entity)
	})

	if !result.IsSuccess() {
		result.Value = nil
	}

	responses.WriteResult(w, result)
}

func newEntity(kind string) (any, error) {
	switch kind {
	case "family":
		return &familybook.Family{}, nil

	case "member":
		return &familybook.Member{}, nil

	case "album":
		return &familybook.Album{}, nil

	case "photo":
		return &familybook.Photo{}, nil
	}

	return nil, fmt.Errorf("unknown entity '%s'", kind)
}
