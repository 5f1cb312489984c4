package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
	"github.com/go-chi/render"
)

func respond[T any](w http.ResponseWriter, r *http.Request, status int, data T) {
	render.Status(r, status)
	render.JSON(w, r, wire.Envelope[T]{Data: data})
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, wire.Envelope[any]{Error: msg})
}

// statusFor maps service errors onto HTTP statuses. Unknown errors are 500
// and their text is not leaked to the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, common.ErrInternal.Error()
	}
}
