package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	adcatalogdomain "github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/authorization"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/internal/occupancy"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"github.com/smallbiznis/spotlight/pkg/db"
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
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrAccountRequired    = errors.New("account_required")
	ErrInvalidSignature   = errors.New("invalid_signature")
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
		if status == http.StatusServiceUnavailable && c.Writer.Header().Get("Retry-After") == "" {
			c.Header("Retry-After", "1")
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

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var balanceErr *ledgerdomain.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: balanceErr.Error(),
			Details: map[string]any{
				"needed":    balanceErr.Requested,
				"balance":   balanceErr.Balance,
				"shortfall": balanceErr.Shortfall,
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, reservationdomain.ErrAdNotEligible):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "ad_not_eligible",
			Message: "ad is not eligible to be featured",
		}
	case errors.Is(err, reservationdomain.ErrAlreadyFeatured):
		return http.StatusConflict, errorPayload{
			Type:    "already_featured",
			Message: "ad already holds a live reservation in this placement",
		}
	case errors.Is(err, reservationdomain.ErrCapacityExceeded):
		return http.StatusConflict, errorPayload{
			Type:    "capacity_exceeded",
			Message: "placement is fully booked for the requested window",
		}
	case errors.Is(err, reservationdomain.ErrNotCancellable):
		return http.StatusConflict, errorPayload{
			Type:    "not_cancellable",
			Message: "reservation cannot be cancelled",
		}
	case errors.Is(err, reservationdomain.ErrNotEditable):
		return http.StatusConflict, errorPayload{
			Type:    "not_editable",
			Message: err.Error(),
		}
	case errors.Is(err, ledgerdomain.ErrBalanceOverflow):
		return http.StatusConflict, errorPayload{
			Type:    "balance_overflow",
			Message: "credit would overflow the account balance",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, ledgerdomain.ErrIdempotencyConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable), db.IsRetryable(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable, retry shortly",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the (type, code) pair logged for a failed request.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrAccountRequired),
		errors.Is(err, reservationdomain.ErrInvalidRequest),
		errors.Is(err, reservationdomain.ErrInvalidPlacement),
		errors.Is(err, reservationdomain.ErrInvalidDuration),
		errors.Is(err, reservationdomain.ErrInvalidSchedule),
		errors.Is(err, reservationdomain.ErrInvalidAccount),
		errors.Is(err, reservationdomain.ErrReasonRequired),
		errors.Is(err, reservationdomain.ErrInvalidPageToken),
		errors.Is(err, ledgerdomain.ErrInvalidAccount),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidReason),
		errors.Is(err, ledgerdomain.ErrInvalidPageToken),
		errors.Is(err, slotcatalogdomain.ErrInvalidPlacement),
		errors.Is(err, slotcatalogdomain.ErrInvalidDuration),
		errors.Is(err, slotcatalogdomain.ErrInvalidCapacity),
		errors.Is(err, slotcatalogdomain.ErrInvalidCreditCost),
		errors.Is(err, adcatalogdomain.ErrInvalidAd),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, occupancy.ErrInvalidRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, reservationdomain.ErrReservationNotFound),
		errors.Is(err, adcatalogdomain.ErrAdNotFound),
		errors.Is(err, slotcatalogdomain.ErrPriceNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, known := range []error{
		ErrInvalidRequest,
		ErrAccountRequired,
		reservationdomain.ErrInvalidRequest,
		reservationdomain.ErrInvalidPlacement,
		reservationdomain.ErrInvalidDuration,
		reservationdomain.ErrInvalidSchedule,
		reservationdomain.ErrInvalidAccount,
		reservationdomain.ErrReasonRequired,
		slotcatalogdomain.ErrInvalidCapacity,
		slotcatalogdomain.ErrInvalidCreditCost,
		ledgerdomain.ErrInvalidAmount,
		ledgerdomain.ErrInvalidReason,
		occupancy.ErrInvalidRange,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "account_required":
		return "account_id"
	case "reason_required":
		return "reason"
	case "invalid_schedule":
		return "scheduled_start"
	case "invalid_duration":
		return "duration_days"
	case "invalid_credit_cost":
		return "credit_cost"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "account_required":
		return "X-Account-ID header is required"
	case "reason_required":
		return "reason is required"
	case "invalid_placement":
		return "unknown placement"
	case "invalid_duration":
		return "duration must be one of 7, 14, 15, 21, 28 or 30 days"
	case "invalid_schedule":
		return "scheduled start is invalid"
	default:
		return "invalid value"
	}
}
