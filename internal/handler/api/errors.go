package api

import (
	"context"
	"errors"

	"Ares/internal/domain/models"
	xhttp "Ares/pkg/http"
)

// toAppError maps domain failures onto HTTP errors. Unknown errors stay
// internal and are hidden from the client.
func toAppError(err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError("no data for the requested symbol").WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError(xhttp.CodeInsufficientData, err.Error()).WithError(err)
	case errors.Is(err, models.ErrInvalidSeries):
		return xhttp.UnprocessableError(xhttp.CodeInvalidSeries, err.Error()).WithError(err)
	case errors.Is(err, models.ErrAlignment):
		return xhttp.UnprocessableError(xhttp.CodeAlignment, err.Error()).WithError(err)
	case errors.Is(err, models.ErrOptimizationFailed):
		return xhttp.UnprocessableError(xhttp.CodeOptimizationFailed, err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.TimeoutError("request timed out").WithError(err)
	default:
		return err
	}
}
