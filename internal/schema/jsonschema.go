package schema

import (
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

// CompileSchema compiles a JSON Schema document registered under url.
func CompileSchema(url, doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, strings.NewReader(doc)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// MustCompileSchema is like CompileSchema but panics on error. It is meant for
// package-level schemas.
func MustCompileSchema(url, doc string) *jsonschema.Schema {
	s, err := CompileSchema(url, doc)
	if err != nil {
		panic("schema: " + err.Error())
	}
	return s
}

// DecodeWithSchema validates the raw payload against s before decoding it with Decode.
func DecodeWithSchema[T any](body []byte, s *jsonschema.Schema) (T, error) {
	var zero T
	if err := Envelope(body); err != nil {
		return zero, err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return zero, apperrors.ErrValidation.Err(apperrors.ValidationErrors{{ErrStr: err.Error()}})
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return zero, apperrors.ErrValidation.Err(flatten(ve, nil))
		}
		return zero, apperrors.ErrValidation.MsgErr("unable to validate payload", err)
	}
	return Decode[T](body)
}

func flatten(ve *jsonschema.ValidationError, out apperrors.ValidationErrors) apperrors.ValidationErrors {
	if len(ve.Causes) == 0 {
		return append(out, apperrors.ValidationError{
			Field:  ve.InstanceLocation,
			ErrStr: ve.Message,
		})
	}
	for _, c := range ve.Causes {
		out = flatten(c, out)
	}
	return out
}
