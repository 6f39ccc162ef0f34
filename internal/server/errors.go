package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	alertdomain "github.com/smallbiznis/eventra/internal/alert/domain"
	apikeydomain "github.com/smallbiznis/eventra/internal/apikey/domain"
	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
	clientdomain "github.com/smallbiznis/eventra/internal/client/domain"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	pricingdomain "github.com/smallbiznis/eventra/internal/pricing/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	receiptdomain "github.com/smallbiznis/eventra/internal/receipt/domain"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	signupdomain "github.com/smallbiznis/eventra/internal/signup/domain"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
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
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrOrgRequired        = errors.New("org_required")
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

// classifyErrorForLog feeds the request logger the same taxonomy the HTTP
// payload uses, without touching the response.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	return payload.Type, err.Error()
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

	var subErr *registrationdomain.SubmissionError
	if errors.As(err, &subErr) {
		fields := make([]ValidationError, 0, len(subErr.FieldErrors))
		for _, fe := range subErr.FieldErrors {
			fields = append(fields, ValidationError{
				Field:   fe.FieldKey,
				Code:    fe.Code,
				Message: fe.Message,
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid submission",
			Errors:  fields,
		}
	}

	var engValErr *engine.ValidationError
	if errors.As(err, &engValErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   engValErr.Field,
					Code:    engValErr.Code,
					Message: engValErr.Error(),
				},
			},
		}
	}

	var engNotFound *engine.NotFoundError
	if errors.As(err, &engNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: engNotFound.Error(),
		}
	}

	var capErr *engine.CapacityExceededError
	if errors.As(err, &capErr) {
		return http.StatusConflict, errorPayload{
			Type:    "capacity_exceeded",
			Message: capErr.Error(),
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
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, organizationdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
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
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, receiptdomain.ErrRenderingUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
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
		errors.Is(err, ErrOrgRequired),
		errors.Is(err, signupdomain.ErrInvalidRequest):
		return true
	case isOrganizationValidationError(err),
		isClientValidationError(err),
		isEventValidationError(err),
		isFormValidationError(err),
		isAddOnValidationError(err),
		isPricingValidationError(err),
		isSponsorshipValidationError(err),
		isRegistrationValidationError(err),
		isReceiptValidationError(err),
		isDashboardValidationError(err),
		isAPIKeyValidationError(err),
		errors.Is(err, alertdomain.ErrInvalidThreshold),
		errors.Is(err, alertdomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

// Conflicts are requests that are well formed but collide with current
// state: lifecycle transitions that are no longer legal, exhausted codes,
// capacity races lost at commit time.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, eventdomain.ErrNotPublishable),
		errors.Is(err, eventdomain.ErrArchivePublished),
		errors.Is(err, eventdomain.ErrCapacityExceeded),
		errors.Is(err, sponsorshipdomain.ErrNotTransitionable),
		errors.Is(err, sponsorshipdomain.ErrCodeExhausted),
		errors.Is(err, registrationdomain.ErrEventNotOpen),
		errors.Is(err, registrationdomain.ErrEventFull),
		errors.Is(err, registrationdomain.ErrNotApprovable),
		errors.Is(err, registrationdomain.ErrNotCancellable),
		errors.Is(err, registrationdomain.ErrNotResendable),
		errors.Is(err, organizationdomain.ErrLastOwner),
		errors.Is(err, organizationdomain.ErrInviteNotPending):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, eventdomain.ErrNotFound),
		errors.Is(err, formdomain.ErrNotFound),
		errors.Is(err, formdomain.ErrFieldNotFound),
		errors.Is(err, formdomain.ErrNoActiveForm),
		errors.Is(err, addondomain.ErrNotFound),
		errors.Is(err, pricingdomain.ErrNotFound),
		errors.Is(err, pricingdomain.ErrRuleNotFound),
		errors.Is(err, sponsorshipdomain.ErrNotFound),
		errors.Is(err, registrationdomain.ErrNotFound),
		errors.Is(err, receiptdomain.ErrNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, organizationdomain.ErrMemberNotFound),
		errors.Is(err, organizationdomain.ErrInviteNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, signupdomain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
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
