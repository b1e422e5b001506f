package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware translates errors attached to the context into
// the JSON error envelope. Handlers and middleware call c.Error and
// abort; the actual status and body are decided here, in one place.
func ErrorHandlerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("ErrorHandler")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, body := translateError(err)

		if status >= http.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		} else {
			log.Warn("Request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		c.JSON(status, body)
	}
}

func translateError(err error) (int, dto.APIErrorResponse) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]dto.FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, dto.FieldError{
				Field:   fe.Field(),
				Message: validationMessage(fe),
			})
		}
		return http.StatusBadRequest, dto.APIErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed.",
			Details: details,
		}
	}

	switch {
	case ierr.IsAuthFailure(err):
		// One generic body for every authentication failure cause.
		return http.StatusUnauthorized, dto.APIErrorResponse{
			Code:    "UNAUTHENTICATED",
			Message: "Invalid or missing API key credentials.",
		}
	case errors.Is(err, ierr.ErrInsufficientScope), errors.Is(err, ierr.ErrForbidden):
		return http.StatusForbidden, dto.APIErrorResponse{
			Code:    "FORBIDDEN",
			Message: err.Error(),
		}
	case errors.Is(err, ierr.ErrValidation):
		return http.StatusBadRequest, dto.APIErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		}
	case errors.Is(err, ierr.ErrNotFound):
		return http.StatusNotFound, dto.APIErrorResponse{
			Code:    "NOT_FOUND",
			Message: err.Error(),
		}
	case errors.Is(err, ierr.ErrConflict):
		return http.StatusConflict, dto.APIErrorResponse{
			Code:    "CONFLICT",
			Message: err.Error(),
		}
	case errors.Is(err, ierr.ErrUpstreamInput):
		return http.StatusBadRequest, dto.APIErrorResponse{
			Code:    "UPSTREAM_REJECTED",
			Message: err.Error(),
		}
	case errors.Is(err, ierr.ErrUpstreamTransport):
		return http.StatusBadGateway, dto.APIErrorResponse{
			Code:    "UPSTREAM_UNAVAILABLE",
			Message: "Mail server is unreachable. Try again later.",
		}
	default:
		// Never leak internal error detail on 500s.
		return http.StatusInternalServerError, dto.APIErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred.",
		}
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "min":
		return "Must be at least " + fe.Param() + "."
	case "max":
		return "Must be at most " + fe.Param() + "."
	case "gte":
		return "Must be greater than or equal to " + fe.Param() + "."
	case "lte":
		return "Must be less than or equal to " + fe.Param() + "."
	default:
		return "Invalid value."
	}
}
