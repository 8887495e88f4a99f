package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/authorization"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	"github.com/smallbiznis/posreport/pkg/telemetry/correlation"
	"github.com/smallbiznis/posreport/pkg/validation"
	"gorm.io/gorm"
)

const invalidDataMessage = "The given data was invalid."

type errorPayload struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// validationResponse lists every problem per field.
type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		if verrs, ok := validation.As(lastErr.Err); ok {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, validationResponse{
				Message: invalidDataMessage,
				Errors:  verrs,
			})
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			payload.CorrelationID = correlation.ExtractCorrelationID(c.Request.Context())
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError(message string) error {
	verrs := validation.Errors{}
	verrs.Add("request", message)
	return verrs
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidSession):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthenticated"}
	case errors.Is(err, authdomain.ErrSessionInvalidated):
		return http.StatusUnauthorized, errorPayload{Type: "session_invalidated", Message: sessionInvalidatedMessage}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, apikeydomain.ErrLocationMismatch):
		return http.StatusForbidden, errorPayload{Type: "location_mismatch", Message: "this terminal key may not push records for that branch, store or terminal"}
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "user already exists"}
	case errors.Is(err, authdomain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorPayload{Type: "too_many_requests", Message: "too many login attempts, try again later"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, authdomain.ErrSessionStoreUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrInvalidKeyID),
		errors.Is(err, ingestiondomain.ErrDocumentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code fields.
func classifyErrorForLog(err error) (string, string) {
	if _, ok := validation.As(err); ok {
		return "validation_error", "invalid_data"
	}
	_, payload := mapError(err)
	return payload.Type, err.Error()
}
