package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"tulisin/apperr"
)

const maxBodyBytes = 1 << 20

// fieldMessages holds the client-facing text per "<json field>.<rule>".
var fieldMessages = map[string]string{
	"name.required":      "Name is required and must be a string",
	"name.max":           "Name must not exceed 100 characters",
	"email.required":     "Email is required and must be a string",
	"email.email":        "Email must be a valid email address",
	"password.required":  "Password is required and must be a string",
	"password.min":       "Password must be at least 6 characters long",
	"password.max":       "Password must not exceed 72 characters",
	"sectionId.required": "Section ID is required and must be a string",
	"sectionId.notblank": "Section ID cannot be empty",
	"title.notblank":     "Title cannot be empty",
	"title.max":          "Title must not exceed 200 characters",
	"content.notblank":   "Content cannot be empty",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// decode reads a JSON object body into dst. Anything else, including a
// bare null or array, is rejected as a validation error.
func decode(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	data = bytes.TrimSpace(data)
	if err != nil || len(data) == 0 || data[0] != '{' {
		return invalidBody()
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.FieldValidation(typeErr.Field, fieldLabel(typeErr.Field)+" must be a "+jsonKind(typeErr.Type), "type")
		}
		return invalidBody()
	}
	return nil
}

func invalidBody() error {
	return apperr.Validation("Invalid request body", apperr.FieldError{
		Field:   "body",
		Message: "Request body must be a valid JSON object",
	})
}

// check runs the struct's validate tags and converts failures to field errors.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return apperr.Validation("Validation failed", fields...)
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed the %s=%s rule", fieldLabel(fe.Field()), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed the %s rule", fieldLabel(fe.Field()), fe.Tag())
}

func fieldLabel(field string) string {
	switch field {
	case "sectionId":
		return "Section ID"
	case "":
		return "Field"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	}
	return t.Kind().String()
}
