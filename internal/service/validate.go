package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/linkbio/internal/apperror"
)

// newValidator reports field names by their json tag, so a failure on
// EditableFields.Links[2].URL surfaces as "links[2].url", the name the
// client actually sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into an AppError. Any
// other error passes through unchanged.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:] // drop the root struct name
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte", "lte":
		msg = fmt.Sprintf("%s must be between 0 and 100", field)
	case "http_url":
		msg = fmt.Sprintf("%s must be an http(s) address", field)
	case "oneof":
		msg = fmt.Sprintf("%s is not a supported value", field)
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return apperror.ValidationFailed(field, msg)
}

// validateEmail checks a single email address.
func validateEmail(v *validator.Validate, email string) error {
	if err := v.Var(email, "required,email"); err != nil {
		return apperror.ValidationFailed("email", "a valid email address is required")
	}
	return nil
}
