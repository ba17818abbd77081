package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func permissionDenied(message string) *DomainError {
	return domainError(http.StatusForbidden, "PERMISSION_DENIED", message, nil)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func userNotFound(email string) *DomainError {
	return domainError(http.StatusNotFound, "USER_NOT_FOUND", "No user found with that email", map[string]any{"email": email})
}

func invalidTarget(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "INVALID_TARGET", message, nil)
}

func alreadyShared(role string) *DomainError {
	return domainError(http.StatusConflict, "ALREADY_SHARED", fmt.Sprintf("User already has %s access", role), nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}
