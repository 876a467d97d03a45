package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/domain"
)

// envelope is the body of every response.
type envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
	Count   *int                `json:"count,omitempty"`
	Total   *int                `json:"total,omitempty"`
	Page    *int                `json:"page,omitempty"`
	Pages   *int                `json:"pages,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: true, Message: message})
}

func respondList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	c.JSON(http.StatusOK, envelope{Success: true, Data: items, Count: &count})
}

func respondPage[T any](c *gin.Context, result domain.PageResult[T]) {
	items := result.Items
	if items == nil {
		items = []T{}
	}
	count := len(items)
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Count:   &count,
		Total:   &result.Total,
		Page:    &result.Page,
		Pages:   &result.Pages,
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody hides everything but the caller-facing message. Unclassified errors become a generic 500.
func errorBody(err error, status int) envelope {
	body := envelope{Success: false}
	var verr *domain.ValidationError
	var derr *domain.Error
	switch {
	case status == http.StatusInternalServerError:
		body.Message = "Internal server error"
	case errors.As(err, &verr):
		body.Message = verr.Error()
		body.Errors = verr.Fields
	case errors.As(err, &derr):
		body.Message = derr.Message
	default:
		body.Message = err.Error()
	}
	return body
}

func writeError(c *gin.Context, logger logrus.FieldLogger, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, errorBody(err, status))
}

func badRequest(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Success: false,
		Message: message,
		Errors:  []domain.FieldError{{Field: field, Message: message}},
	})
}
