package app

import (
	"errors"
	"fmt"
	"net/http"

	"giftregistry/api/internal/export"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/search"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details map[string]any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errUnauthorized   = domainError(http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
	errInvalidJSON    = domainError(http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", nil)
	errMissingFields  = domainError(http.StatusBadRequest, "missing_fields", "payload and client are required", nil)
	errExportDisabled = domainError(http.StatusServiceUnavailable, "export_unavailable", "Export is not enabled", nil)
)

// mapError turns service errors into the status, stable code and extra
// top-level fields of the error response.
func mapError(err error) (status int, code, message string, details map[string]any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var conflict *registry.ConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, "version_conflict", "Expected versions are stale", map[string]any{
			"server": conflict.Server,
		}
	}

	var failed *registry.WriteFailedError
	if errors.As(err, &failed) {
		return http.StatusInternalServerError, "write_failed", "Storage write failed", map[string]any{
			"stage": failed.Stage,
		}
	}

	switch {
	case errors.Is(err, registry.ErrInvalidMode):
		return http.StatusBadRequest, "invalid_mode", "Unknown mode", nil
	case errors.Is(err, registry.ErrNoUndo):
		return http.StatusBadRequest, "no_undo", "Nothing to undo", nil
	case errors.Is(err, search.ErrUnavailable):
		return http.StatusServiceUnavailable, "search_unavailable", "Search is not available", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "invalid_format", "Unknown export format", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "export_unavailable", "PDF rendering is not available", nil
	}
	return http.StatusInternalServerError, "internal_error", "Server error", nil
}
