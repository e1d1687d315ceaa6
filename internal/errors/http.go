package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error onto the status code the HTTP layer responds with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message placed in JSON error bodies.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}

	var ce *CwrapError
	if errors.As(err, &ce) {
		return ce.Public()
	}

	return err.Error()
}
