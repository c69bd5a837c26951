package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	entitlementdomain "github.com/smallbiznis/entitlement/internal/entitlement/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	usagedomain "github.com/smallbiznis/entitlement/internal/usage/domain"
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
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrConflict           = errors.New("conflict")
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

	var exceeded *entitlementdomain.LimitExceededError
	if errors.As(err, &exceeded) {
		return http.StatusPaymentRequired, errorPayload{
			Type:    "limit_exceeded",
			Message: "usage limit reached",
			Details: map[string]any{
				"module_id":   exceeded.ModuleID,
				"feature_key": exceeded.FeatureKey,
				"limit":       exceeded.Limit,
				"used":        exceeded.Used,
				"requested":   exceeded.Requested,
			},
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

	switch {
	case errors.Is(err, subscriptiondomain.ErrAccountTypeNotAllowed):
		return http.StatusForbidden, errorPayload{
			Type:    "account_type_not_allowed",
			Message: err.Error(),
		}
	case errors.Is(err, subscriptiondomain.ErrNoAccess):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "no_access",
			Message: "module requires a subscription",
		}
	case errors.Is(err, entitlementdomain.ErrFeatureNotGranted):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "feature_not_granted",
			Message: "feature not granted by the current tier",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, subscriptiondomain.ErrConcurrentUpdate),
		errors.Is(err, subscriptiondomain.ErrActivationInProgress),
		errors.Is(err, usagedomain.ErrContention):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, tierdomain.ErrNoDefaultTier),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
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

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidID),
		errors.Is(err, accountdomain.ErrInvalidType),
		errors.Is(err, entitlementdomain.ErrInvalidQuery),
		errors.Is(err, entitlementdomain.ErrInvalidAmount),
		errors.Is(err, subscriptiondomain.ErrInvalidAccount),
		errors.Is(err, subscriptiondomain.ErrInvalidModule),
		errors.Is(err, subscriptiondomain.ErrInvalidTier),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingCycle),
		errors.Is(err, subscriptiondomain.ErrInvalidStatus),
		errors.Is(err, subscriptiondomain.ErrInvalidTrial),
		errors.Is(err, subscriptiondomain.ErrTierModuleMismatch),
		errors.Is(err, tierdomain.ErrInvalidModuleID),
		errors.Is(err, featuredomain.ErrInvalidModuleID),
		errors.Is(err, featuredomain.ErrInvalidTierKey),
		errors.Is(err, usagedomain.ErrInvalidKey),
		errors.Is(err, usagedomain.ErrInvalidAmount):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, moduledomain.ErrNotFound),
		errors.Is(err, tierdomain.ErrNotFound),
		errors.Is(err, featuredomain.ErrTierNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode reports the innermost sentinel of a wrapped error.
func validationErrorCode(err error) string {
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		err = inner
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
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
	default:
		return "invalid value"
	}
}
