package httpadapter

import (
	"net/http"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrAdmissionRejected):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrContractViolation):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
