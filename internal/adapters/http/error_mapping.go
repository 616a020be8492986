package httpadapter

import (
	"net/http"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrDirectoryRequired):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrDirectoryNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateDocument),
		domain.IsKind(err, domain.ErrDuplicateDirectory),
		domain.IsKind(err, domain.ErrUploadInFlight):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
