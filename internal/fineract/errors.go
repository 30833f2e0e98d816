package fineract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized = errors.New("fineract: unauthorized")
	ErrNotFound     = errors.New("fineract: resource not found")
)

// FieldError is a single validation failure in a Fineract error payload.
type FieldError struct {
	Code          string `json:"userMessageGlobalisationCode"`
	Message       string `json:"defaultUserMessage"`
	DeveloperHint string `json:"developerMessage,omitempty"`
	Parameter     string `json:"parameterName,omitempty"`
}

// APIError is a non-2xx response from the banking API.
type APIError struct {
	Status        int
	Code          string
	Message       string
	DeveloperHint string
	Errors        []FieldError
}

func (e *APIError) Error() string {

	message := e.Message
	if len(message) == 0 {
		message = http.StatusText(e.Status)
	}

	var details []string
	for _, fieldError := range e.Errors {
		if len(fieldError.Message) > 0 && fieldError.Message != message {
			details = append(details, fieldError.Message)
		}
	}

	if len(details) > 0 {
		return fmt.Sprintf("fineract: %d %s: %s", e.Status, message, strings.Join(details, "; "))
	}
	return fmt.Sprintf("fineract: %d %s", e.Status, message)
}

// Unwrap lets callers test for ErrUnauthorized and ErrNotFound with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

func newAPIError(status int, body []byte) *APIError {

	apiErr := &APIError{}
	if len(body) > 0 {
		// Fineract is not consistent about the type of httpStatusCode, so the
		// status from the response always wins.
		var payload struct {
			Code          string       `json:"userMessageGlobalisationCode"`
			Message       string       `json:"defaultUserMessage"`
			DeveloperHint string       `json:"developerMessage"`
			Errors        []FieldError `json:"errors"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
			apiErr.DeveloperHint = payload.DeveloperHint
			apiErr.Errors = payload.Errors
		}
	}
	apiErr.Status = status

	return apiErr
}
