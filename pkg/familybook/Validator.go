package familybook

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var defaultValidator = NewValidator(ValidatorConfig{})

type ValidatorConfig struct {
	Now func() time.Time
}

/*
Validator checks Family, Member, Album and Photo values against their
field rules. Rules live in the `validate` struct tags; the date rules that
depend on the clock are registered here so tests can pin the time.
*/
type Validator struct {
	now      func() time.Time
	validate *validator.Validate
}

func NewValidator(config ValidatorConfig) Validator {
	if config.Now == nil {
		config.Now = time.Now
	}

	v := Validator{
		now:      config.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]

		if name == "-" || name == "" {
			return field.Name
		}

		return name
	})

	_ = v.validate.RegisterValidation("notblank", v.notBlank)
	_ = v.validate.RegisterValidation("notfuture", v.notFuture)
	_ = v.validate.RegisterValidation("maxage", v.maxAge)
	v.validate.RegisterStructValidation(v.photoRules, Photo{})

	return v
}

/*
Validate returns nil when entity passes every rule, a *ValidationError
listing each failed field otherwise.
*/
func (v Validator) Validate(entity any) error {
	var (
		err             error
		validationErrs  validator.ValidationErrors
		invalidValueErr *validator.InvalidValidationError
	)

	if err = v.validate.Struct(entity); err == nil {
		return nil
	}

	if errors.As(err, &invalidValueErr) {
		return fmt.Errorf("error validating %T: %w", entity, err)
	}

	if !errors.As(err, &validationErrs) {
		return err
	}

	result := &ValidationError{
		Entity: entityName(entity),
		Errors: make([]FieldError, 0, len(validationErrs)),
	}

	for _, fe := range validationErrs {
		result.Errors = append(result.Errors, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}

	return result
}

func (v Validator) notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func (v Validator) notFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}

	return !t.After(v.now())
}

func (v Validator) maxAge(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}

	years, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	return !t.Before(v.now().AddDate(-years, 0, 0))
}

func (v Validator) photoRules(sl validator.StructLevel) {
	photo := sl.Current().Interface().(Photo)

	if photo.PublicationDate.IsZero() {
		return
	}

	if photo.PublicationDate.After(v.now().Add(publicationClockSkew)) {
		sl.ReportError(photo.PublicationDate, "publicationDate", "PublicationDate", "notfuture", "")
	}

	if !photo.CreatedDate.IsZero() && photo.PublicationDate.Before(photo.CreatedDate.Add(-publicationLeadTime)) {
		sl.ReportError(photo.PublicationDate, "publicationDate", "PublicationDate", "afterCreated", "")
	}
}

func entityName(entity any) string {
	t := reflect.TypeOf(entity)

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}

func message(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return field + " is required"

	case "notblank":
		return field + " must not be empty or whitespace only"

	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}

		return fmt.Sprintf("%s must be at least %s", field, fe.Param())

	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}

		return fmt.Sprintf("%s must be at most %s", field, fe.Param())

	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())

	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, lowerFirst(fe.Param()))

	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(strings.Fields(fe.Param()), ", "))

	case "notfuture":
		return field + " must not be in the future"

	case "maxage":
		return fmt.Sprintf("%s must be within the last %s years", field, fe.Param())

	case "afterCreated":
		return field + " must not be more than one day before createdDate"
	}

	return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}

	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
