// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxQueryBytes bounds a single user query.
const MaxQueryBytes = 8 * 1024

// StartRequest begins a new user turn on a thread.
type StartRequest struct {
	ThreadID string `json:"thread_id" validate:"required,max=128,printascii"`
	Query    string `json:"query" validate:"required,maxbytes"`
}

// ResumeRequest supplies the ranking criterion for a suspended thread.
// An empty or unknown criterion selects citations.
type ResumeRequest struct {
	ThreadID  string `json:"thread_id" validate:"required,max=128,printascii"`
	Criterion string `json:"criterion"`
}

// statusRequest validates the thread id of Status and Reset calls.
type statusRequest struct {
	ThreadID string `json:"thread_id" validate:"required,max=128,printascii"`
}

var requestValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	err := v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxQueryBytes
	})
	if err != nil {
		panic(fmt.Sprintf("registering maxbytes validation: %v", err))
	}
	return v
}

// validateRequest checks req and reports the first invalid field.
func validateRequest(req any) error {
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating request: %w", err)
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: validationReason(fe)}
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %d bytes", MaxQueryBytes)
	case "printascii":
		return "must contain printable ASCII characters only"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
