package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"drinktab/core"
)

const maxBodyBytes = 1 << 16

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return core.Category(fl.Field().String()).Valid()
	})
	return &requestValidator{v: v}
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the error response and returns false.
func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", fmt.Sprintf("decode body: %v", err), nil)
		return false
	}
	if err := a.valid.v.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			details := make([]fieldError, 0, len(ve))
			for _, fe := range ve {
				details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
			writeError(w, http.StatusBadRequest, "validation_failed", "request validation failed", details)
			return false
		}
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return false
	}
	return true
}
