package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Additional-Code/subext/pkg/errorbank"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON path so messages match the payload.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct tags and returns an InvalidInput error listing every violation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errorbank.InvalidInput("invalid payload", errorbank.WithCause(err))
	}

	messages := make([]string, 0, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
		fields = append(fields, fieldPath(fe))
	}

	return errorbank.InvalidInput(
		strings.Join(messages, "; "),
		errorbank.WithDetail("fields", fields),
	)
}

// DecodeExtensionRequest parses and validates an extension call body.
func DecodeExtensionRequest(body []byte) (ExtensionRequest, error) {
	var req ExtensionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ExtensionRequest{}, errorbank.InvalidInput("invalid payload", errorbank.WithCause(err))
	}
	if err := Validate(req); err != nil {
		return ExtensionRequest{}, err
	}
	return req, nil
}

func fieldMessage(fe validator.FieldError) string {
	path := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}

// fieldPath drops the root struct name: "ExtensionRequest.resource.obj" becomes "resource.obj".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
