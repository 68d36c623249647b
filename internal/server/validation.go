package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the placement and duration_days tags to gin's
// validator engine.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("placement", func(fl validator.FieldLevel) bool {
			return slotcatalogdomain.IsKnownPlacement(slotcatalogdomain.NormalizePlacement(fl.Field().String()))
		})
		_ = v.RegisterValidation("duration_days", func(fl validator.FieldLevel) bool {
			return slotcatalogdomain.IsAllowedDuration(int(fl.Field().Int()))
		})
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			return jsonFieldName(field.Tag.Get("json"), field.Tag.Get("form"), field.Name)
		})
	})
}

// bindError converts binding failures into field-level validation errors.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidRequestError()
	}
	out := ValidationErrors{}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    validationCodeForTag(fe.Tag(), fe.Field()),
			Message: validationMessageForTag(fe),
		})
	}
	return &out
}

func validationCodeForTag(tag, field string) string {
	switch tag {
	case "required":
		return field + "_required"
	case "placement":
		return "invalid_placement"
	case "duration_days":
		return "invalid_duration"
	default:
		return "invalid_" + field
	}
}

func validationMessageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "placement":
		return validationErrorMessage("invalid_placement")
	case "duration_days":
		return validationErrorMessage("invalid_duration")
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return "invalid value"
	}
}

func jsonFieldName(jsonTag, formTag, fallback string) string {
	for _, tag := range []string{jsonTag, formTag} {
		name := strings.TrimSpace(strings.Split(tag, ",")[0])
		if name != "" && name != "-" {
			return name
		}
	}
	return fallback
}
