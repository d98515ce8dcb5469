package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/tablebill/internal/gateway"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/tablebill/internal/payment/domain"
	publicinvoicedomain "github.com/smallbiznis/tablebill/internal/publicinvoice/domain"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/smallbiznis/tablebill/internal/scheduler"
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
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
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

		status, payload := mapError(lastErr.Err)
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

// bindingError turns validator field errors into per-field validation errors.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: "failed on " + fe.Tag(),
		})
	}
	return &ValidationErrors{Errors: out}
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

	if code, ok := validationCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: code.field, Code: code.code, Message: "invalid value"},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusPaymentRequired, errorPayload{Type: "payment_failed", Message: "payment verification failed"}
	case errors.Is(err, paymentdomain.ErrAlreadyProcessed),
		errors.Is(err, publicinvoicedomain.ErrInvoiceUnavailable):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "invoice already processed"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, publicinvoicedomain.ErrCheckoutUnavailable),
		errors.Is(err, gateway.ErrUnavailable),
		errors.Is(err, gateway.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "payment gateway unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

type fieldCode struct {
	field string
	code  string
}

var validationCodes = []struct {
	err error
	fieldCode
}{
	{ErrInvalidRequest, fieldCode{"request", "invalid_request"}},
	{invoicedomain.ErrInvalidRequest, fieldCode{"request", "invalid_request"}},
	{paymentdomain.ErrInvalidRequest, fieldCode{"request", "invalid_request"}},
	{invoicedomain.ErrInvalidRestaurant, fieldCode{"restaurant_id", "invalid_restaurant"}},
	{restaurantdomain.ErrInvalidID, fieldCode{"restaurant_id", "invalid_restaurant_id"}},
	{invoicedomain.ErrInvalidMonths, fieldCode{"months", "invalid_months"}},
	{invoicedomain.ErrInvalidDelta, fieldCode{"location_deltas", "invalid_location_delta"}},
	{invoicedomain.ErrNoBillableTables, fieldCode{"tables", "no_billable_tables"}},
	{paymentdomain.ErrOrderMismatch, fieldCode{"razorpay_order_id", "order_mismatch"}},
	{publicinvoicedomain.ErrInvalidToken, fieldCode{"token", "invalid_token"}},
	{gateway.ErrMalformedInput, fieldCode{"request", "invalid_request"}},
	{scheduler.ErrUnknownJob, fieldCode{"job", "unknown_job"}},
}

func validationCode(err error) (fieldCode, bool) {
	for _, vc := range validationCodes {
		if errors.Is(err, vc.err) {
			return vc.fieldCode, true
		}
	}
	return fieldCode{}, false
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, restaurantdomain.ErrNotFound),
		errors.Is(err, restaurantdomain.ErrLocationNotFound),
		errors.Is(err, invoicedomain.ErrRestaurantNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrInvoiceNotFound),
		errors.Is(err, publicinvoicedomain.ErrInvoiceNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return payload.Type, err.Error()
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}
