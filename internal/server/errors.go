package server

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/eroom/internal/errs"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// retryAfterSeconds is sent with 503 responses caused by transient storage errors.
const retryAfterSeconds = "1"

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

		status, payload := mapError(lastErr.Err)
		if status == http.StatusServiceUnavailable && c.Writer.Header().Get("Retry-After") == "" {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.Header("Content-Type", "application/json")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fieldErrors(err),
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, errs.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    domainCode(err),
			Message: "not found",
		}
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    domainCode(err),
			Message: "conflict",
		}
	case errors.Is(err, errs.ErrBusinessRule):
		message := errs.Reason(err)
		if message == "" {
			message = "request violates a business rule"
		}
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "business_rule_violation",
			Code:    domainCode(err),
			Message: message,
		}
	case errors.Is(err, errs.ErrNotification):
		return http.StatusBadGateway, errorPayload{
			Type:    "notification_failure",
			Message: "notification could not be delivered",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable), errs.IsRetryable(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service temporarily unavailable, retry shortly",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// fieldErrors expands validator failures into one entry per field. Other
// validation errors become a single entry keyed by their sentinel.
func fieldErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Field:   toSnake(fe.Field()),
				Code:    fe.Tag(),
				Message: "invalid value",
			})
		}
		return out
	}
	code := domainCode(err)
	if code == "" {
		code = "invalid_request"
	}
	return []ValidationError{{
		Field:   strings.TrimPrefix(code, "invalid_"),
		Code:    code,
		Message: "invalid value",
	}}
}

// domainCode is the sentinel text of the wrapped domain error, such as
// coupon_expired.
func domainCode(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Err != nil {
		var verrs validator.ValidationErrors
		if errors.As(e.Err, &verrs) {
			return ""
		}
		return rootMessage(e.Err)
	}
	return ""
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// toSnake turns a Go field name such as RoomID into room_id.
func toSnake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
