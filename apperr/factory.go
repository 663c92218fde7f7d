package apperr

import "fmt"

// FieldValidation builds a validation error for a single field.
func FieldValidation(field, message, code string) *Error {
	return Validation("Validation failed", FieldError{Field: field, Message: message, Code: code})
}

// NotFoundResource builds "<resource> not found", naming the identifier when given.
func NotFoundResource(resource, id string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	if id != "" {
		return NotFound(fmt.Sprintf("%s with ID '%s' not found", resource, id))
	}
	return NotFound(resource + " not found")
}

func InvalidCredentials() *Error {
	return Authentication("Invalid email or password")
}

func TokenExpired() *Error {
	return Authentication("Token expired")
}

func InvalidToken() *Error {
	return Authentication("Invalid token")
}
