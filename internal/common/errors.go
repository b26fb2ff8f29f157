package common

import (
	"errors"
	"net/http"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/core"
	"github.com/jo-hoe/oralvis/internal/report"
)

const StorageUnavailableMessage = "Storage unavailable, please try again later."

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var validationErr *core.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor is the user-facing text for an error. Internal details are not exposed.
func MessageFor(err error) string {
	var validationErr *core.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return "Upload rejected: " + validationErr.Error() + "."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, database.ErrNotFound):
		return "Scan not found."
	case errors.Is(err, database.ErrStorage):
		return StorageUnavailableMessage
	case errors.Is(err, report.ErrExport):
		return "The report could not be generated for this scan."
	default:
		return "Something went wrong."
	}
}
