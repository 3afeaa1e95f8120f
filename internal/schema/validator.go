// Package schema decodes and validates API responses into typed values. A value
// returned by this package satisfies its declared shape; anything else is an
// apperrors.ErrValidation failure.
package schema

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

var (
	schemaValidator *validator.Validate
	once            sync.Once
)

// V returns the shared struct validator. Field names in reported errors use
// the json tag of the field.
func V() *validator.Validate {
	once.Do(func() {
		schemaValidator = validator.New(validator.WithRequiredStructEnabled())
		schemaValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		schemaValidator.RegisterValidation("notblank", notBlank)
	})
	return schemaValidator
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(field.String()) != ""
}

// Validate runs struct validation on v, which must be a struct or a pointer to one.
func Validate(v any) error {
	err := V().Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperrors.ErrValidation.MsgErr("unable to validate payload", err)
	}
	out := make(apperrors.ValidationErrors, 0, len(ves))
	for _, fe := range ves {
		out = append(out, apperrors.ValidationError{
			Field:  fieldPath(fe.Namespace()),
			Value:  fe.Value(),
			ErrStr: "failed on '" + fe.Tag() + "'",
		})
	}
	return apperrors.ErrValidation.Err(out)
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
