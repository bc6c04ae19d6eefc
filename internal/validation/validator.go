// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package validation validates API request bodies with go-playground/validator v10.
//
// A single validator instance is shared; it caches struct metadata and is
// safe for concurrent use. Two domain tags are registered:
//
//   - behaviour_kind: one of the captured behaviour kinds (level_started, ...)
//   - shape: a shape object id (Cube, Sphere, Capsule)
//
// Example:
//
//	type TapRequest struct {
//	    X      float64 `json:"x" validate:"gte=0"`
//	    Target string  `json:"target" validate:"omitempty,shape|eq=retry_button"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    ...
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// ErrorCode is the API error code for validation failures.
const ErrorCode = "VALIDATION_ERROR"

var behaviourKinds = []string{
	models.KindLevelStarted,
	models.KindLevelCompleted,
	models.KindLevelFailed,
	models.KindShapeSelected,
	models.KindButtonClicked,
	models.KindMissClicked,
}

// GetValidator returns the process-wide validator with the domain tags registered.
var GetValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	must(v.RegisterValidation("behaviour_kind", func(fl validator.FieldLevel) bool {
		return slices.Contains(behaviourKinds, fl.Field().String())
	}))
	must(v.RegisterValidation("shape", func(fl validator.FieldLevel) bool {
		_, err := models.ParseShape(fl.Field().String())
		return err == nil
	}))
	return v
})

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// jsonFieldName reports fields by their JSON name so messages match the request body.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// ValidationError is one rejected field.
type ValidationError struct {
	field, tag, param string
	value             any
	message           string
}

func newValidationError(fe validator.FieldError) ValidationError {
	return ValidationError{
		field:   fe.Field(),
		tag:     fe.Tag(),
		param:   fe.Param(),
		value:   fe.Value(),
		message: describe(fe),
	}
}

func (e *ValidationError) Field() string { return e.field }
func (e *ValidationError) Tag() string { return e.tag }
func (e *ValidationError) Param() string { return e.param }
func (e *ValidationError) Value() any { return e.value }
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError holds every rejected field of one request body.
type RequestValidationError struct {
	errors []ValidationError
}

func (ve *RequestValidationError) Errors() []ValidationError { return ve.errors }

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	var b strings.Builder
	for i := range ve.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ve.errors[i].message)
	}
	return b.String()
}

// APIError is what the HTTP layer puts in the error envelope.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// ToAPIError keeps a lone failure's message as is and prefixes each
// message with its field when there are several.
func (ve *RequestValidationError) ToAPIError() *APIError {
	out := &APIError{Code: ErrorCode, Message: "Validation failed"}
	switch n := len(ve.errors); {
	case n == 1:
		e := ve.errors[0]
		out.Message = e.message
		out.Details = map[string]any{"field": e.field, "tag": e.tag, "value": e.value}
	case n > 1:
		fields := make([]map[string]any, 0, n)
		parts := make([]string, 0, n)
		for _, e := range ve.errors {
			fields = append(fields, map[string]any{"field": e.field, "tag": e.tag, "message": e.message})
			parts = append(parts, e.field+": "+e.message)
		}
		out.Message = strings.Join(parts, "; ")
		out.Details = map[string]any{"fields": fields}
	}
	return out
}

// ValidateStruct returns nil when s passes every validate tag.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}}}
	}
	out := &RequestValidationError{errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.errors = append(out.errors, newValidationError(fe))
	}
	return out
}

// comparisons maps ordering tags to the phrase used in messages.
var comparisons = map[string]string{
	"gte": "greater than or equal to",
	"lte": "less than or equal to",
	"gt":  "greater than",
	"lt":  "less than",
}

// describe renders a field error as a sentence about the JSON field.
func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	if phrase, ok := comparisons[fe.Tag()]; ok {
		return fmt.Sprintf("%s must be %s %s", field, phrase, param)
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "behaviour_kind":
		return field + " must be a known behaviour kind"
	case "shape":
		return field + " must be Cube, Sphere or Capsule"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "eq":
		return fmt.Sprintf("%s must equal %s", field, param)
	case "min", "max":
		bound := map[string]string{"min": "at least", "max": "at most"}[fe.Tag()]
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s %s characters", field, bound, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
