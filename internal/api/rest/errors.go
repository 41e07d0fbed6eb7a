package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artfolio/chainmarket/internal/api/shared/errors"
	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/logger"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, errors.NewBadRequestError(message, details...))
}

// respondNotFound responds with a not found error
func respondNotFound(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusNotFound, errors.NewNotFoundError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, errors.NewValidationError(message))
}

// respondInternalError responds with an internal server error
func respondInternalError(c *gin.Context, err error, message string) {
	logger.Error(err)
	c.JSON(http.StatusInternalServerError, errors.NewInternalError(message))
}

// statusByCode maps marketplace error codes to HTTP status codes. Rejections
// caused by the current state of a token, auction, or balance are conflicts;
// malformed input is a bad request; permission failures are forbidden.
var statusByCode = map[string]int{
	"not_found":            http.StatusNotFound,
	"not_owner":            http.StatusForbidden,
	"not_approved":         http.StatusForbidden,
	"not_authorized":       http.StatusForbidden,
	"seller_only":          http.StatusForbidden,
	"invalid_price":        http.StatusBadRequest,
	"invalid_argument":     http.StatusBadRequest,
	"royalty_out_of_range": http.StatusBadRequest,
	"bundle_empty":         http.StatusBadRequest,
	"bundle_too_large":     http.StatusBadRequest,
	"token_frozen":         http.StatusConflict,
	"token_encumbered":     http.StatusConflict,
	"collection_locked":    http.StatusConflict,
	"auction_active":       http.StatusConflict,
	"mint_limit_reached":   http.StatusConflict,
	"not_allowlisted":      http.StatusForbidden,
	"bid_too_low":          http.StatusConflict,
	"insufficient_funds":   http.StatusConflict,
}

// respondEngineError maps an engine error to an HTTP response carrying the
// marketplace error code
func respondEngineError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		respondInternalError(c, err, "Operation failed")
		return
	}
	c.JSON(status, errors.NewDomainError(code, err.Error()))
}
