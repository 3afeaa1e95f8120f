package schema

import (
	jsonitor "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Envelope inspects the status flag carried by most API responses. A payload with
// "status": false is a business failure carrying the server's message. Payloads
// without a status flag pass.
func Envelope(body []byte) error {
	if !gjson.ValidBytes(body) {
		return apperrors.ErrValidation.Err(apperrors.ValidationErrors{{ErrStr: "malformed JSON payload"}})
	}
	status := gjson.GetBytes(body, "status")
	if status.Exists() && status.Type == gjson.False {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			return apperrors.ErrBusiness
		}
		return apperrors.ErrBusiness.New(msg)
	}
	return nil
}

// Decode checks the envelope of body, unmarshals it into T and validates the
// result. T must be a struct type. On failure the zero T is returned.
func Decode[T any](body []byte) (T, error) {
	var out, zero T
	if err := Envelope(body); err != nil {
		return zero, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, apperrors.ErrValidation.Err(apperrors.ValidationErrors{{ErrStr: err.Error()}})
	}
	if err := Validate(&out); err != nil {
		return zero, err
	}
	return out, nil
}

// Marshal encodes v as a request body.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
