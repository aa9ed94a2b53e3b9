package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sfstore/sfs/internal/common"
)

// Error codes carried in JSON error bodies, namespaced like the rest of
// the sfs API surface.
const (
	codeInvalidName    = "sfs/invalid-name"
	codeInvalidFile    = "sfs/invalid-file"
	codeNotFound       = "sfs/not-found"
	codeNameExists     = "sfs/basket-name-already-exist"
	codeBasketNotEmpty = "sfs/basket-not-empty"
	codeCascadeFailed  = "sfs/cascade-failed"
	codeUploadFailed   = "sfs/upload-failed"
	codeDeleteFailed   = "sfs/delete-failed"
	codeUploadDiverged = "sfs/upload-diverged"
	codeIntegrity      = "sfs/integrity-error"
	codeTransient      = "sfs/transient-backend-error"
	codeAccessDenied   = "sfs/access-denied"
	codeInternal       = "app/internal-server-error"
)

type errorBody struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func writeErrorCode(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorBody{ErrorCode: code, ErrorMessage: message})
}

// writeError maps the coordination layer's error taxonomy onto HTTP. The
// mapping keeps the caller-visible distinction between "not found",
// "failed but consistent" and "needs reconciliation".
func writeError(c echo.Context, err error) error {
	var cascadeErr *common.CascadeError
	if errors.As(err, &cascadeErr) {
		return writeErrorCode(c, http.StatusConflict, codeCascadeFailed, cascadeErr.Error())
	}

	switch {
	case errors.Is(err, common.ErrInvalidName):
		return writeErrorCode(c, http.StatusBadRequest, codeInvalidName, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return writeErrorCode(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, common.ErrConflict):
		return writeErrorCode(c, http.StatusConflict, codeNameExists, err.Error())
	case errors.Is(err, common.ErrNotEmpty):
		return writeErrorCode(c, http.StatusConflict, codeBasketNotEmpty, err.Error())
	case errors.Is(err, common.ErrUploadDiverged):
		return writeErrorCode(c, http.StatusInternalServerError, codeUploadDiverged, err.Error())
	case errors.Is(err, common.ErrIntegrity):
		return writeErrorCode(c, http.StatusInternalServerError, codeIntegrity, err.Error())
	case errors.Is(err, common.ErrTransient):
		return writeErrorCode(c, http.StatusServiceUnavailable, codeTransient, err.Error())
	case errors.Is(err, common.ErrUploadFailed):
		return writeErrorCode(c, http.StatusBadGateway, codeUploadFailed, err.Error())
	case errors.Is(err, common.ErrDeleteFailed):
		return writeErrorCode(c, http.StatusBadGateway, codeDeleteFailed, err.Error())
	default:
		return writeErrorCode(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
