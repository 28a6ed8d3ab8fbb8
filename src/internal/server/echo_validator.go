package server

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
)

// EchoValidator wraps go-playground/validator for Echo
type EchoValidator struct {
	validator *validator.Validate
}

// NewEchoValidator creates a new Echo validator
func NewEchoValidator() *EchoValidator {
	v := validator.New()

	// Report fields by their JSON name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &EchoValidator{validator: v}
}

// Validate implements echo.Validator interface
func (ev *EchoValidator) Validate(i interface{}) error {
	err := ev.validator.Struct(i)
	if err == nil {
		return nil
	}

	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return apperrors.NewValidationError(
			fmt.Sprintf("%s failed %s validation", first.Field(), first.Tag()),
			first.Field())
	}

	return apperrors.NewValidationError(err.Error(), "")
}
