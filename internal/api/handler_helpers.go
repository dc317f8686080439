package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	if status >= 500 {
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	} else {
		logger.Warnf("[request_id=%s] %s: %v", requestID, msg, err)
	}
	text := msg + ": " + err.Error()
	var resp response.APIResponse
	switch status {
	case 400:
		resp = response.BadRequest(text)
	case 401:
		resp = response.Unauthorized(text)
	case 402:
		resp = response.PaymentRequired(text)
	case 404:
		resp = response.NotFound(text)
	case 409:
		resp = response.Conflict(text)
	case 422:
		resp = response.Unprocessable(text)
	case 500:
		resp = response.InternalError(text)
	case 503:
		resp = response.Unavailable(text)
	default:
		resp = response.NewAppError(status, text)
	}
	c.AbortWithStatusJSON(status, resp)
}

// HandleServiceError picks the status for an error returned by the service layer.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error, msg string) {
	HandleError(c, logger, err, StatusFor(err), msg)
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrSessionNotFound),
		errors.Is(err, internal.ErrNoPendingSession),
		errors.Is(err, internal.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrAlreadyClosed),
		errors.Is(err, internal.ErrAlreadySleeping),
		errors.Is(err, internal.ErrAlreadyOwned):
		return http.StatusConflict
	case errors.Is(err, internal.ErrInvalidInterval),
		errors.Is(err, internal.ErrSessionTooLong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, internal.ErrUserRequired):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrInsufficientCoins):
		return http.StatusPaymentRequired
	case errors.Is(err, internal.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusOK, data, meta)
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusCreated, data, meta)
}

func respond(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Success", requestID)
	c.JSON(status, response.Success(data, meta))
}
