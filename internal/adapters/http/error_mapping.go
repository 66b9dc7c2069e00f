package httpadapter

import (
	"net/http"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrScanNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrEngineUnavailable):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrModelFatal), domain.IsKind(err, domain.ErrParseFailure):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
