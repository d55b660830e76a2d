package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/pkg/queue"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// retryAfterSeconds is sent with 503 when the record store is unavailable.
const retryAfterSeconds = "5"

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, entity.ErrEventNotFound),
		errors.Is(err, entity.ErrUserNotFound),
		errors.Is(err, entity.ErrVisitNotFound),
		errors.Is(err, entity.ErrMatchNotFound),
		errors.Is(err, entity.ErrPaymentNotFound),
		errors.Is(err, entity.ErrVenueUnresolvable),
		errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrUserExists),
		errors.Is(err, entity.ErrEventClosed):
		return http.StatusConflict
	case errors.Is(err, entity.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// outcomeStatus maps an admission or cancellation outcome to an HTTP status.
func outcomeStatus(outcome entity.Outcome) int {
	switch outcome {
	case entity.OutcomeConfirmed:
		return http.StatusCreated
	case entity.OutcomeCancelled:
		return http.StatusOK
	case entity.OutcomeNotFound:
		return http.StatusNotFound
	case entity.OutcomeEventFull, entity.OutcomeAlreadyConfirmed, entity.OutcomeNotConfirmed:
		return http.StatusConflict
	case entity.OutcomePaymentRequired:
		return http.StatusPaymentRequired
	case entity.OutcomeSubscriptionRequired, entity.OutcomeQuotaExceeded:
		return http.StatusForbidden
	case entity.OutcomeEventClosed, entity.OutcomeDeadlinePassed:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}
