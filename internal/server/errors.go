package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	criteriadomain "github.com/smallbiznis/appraisal/internal/criteria/domain"
	invitationdomain "github.com/smallbiznis/appraisal/internal/invitation/domain"
	"github.com/smallbiznis/appraisal/internal/observability/logger"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
	"github.com/smallbiznis/appraisal/pkg/db/pagination"
	"go.uber.org/zap"
)

const (
	codeValidationFailed   = "validation-failed"
	codeNotMember          = "not-organization-member"
	codeMissingPermissions = "missing-permissions"
	codeServerError        = "SERVER_ERROR"
	codeDeveloperError     = "DEVELOPER_ERROR"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors carries per-field messages for a rejected request body.
type ValidationErrors struct {
	Errors []FieldError
}

func (v *ValidationErrors) Error() string {
	return "validation_failed"
}

func newValidationError(field, message string) error {
	return &ValidationErrors{Errors: []FieldError{{Field: field, Message: message}}}
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

var (
	ErrMissingAuthToken      = errors.New("missing_auth_token")
	ErrNotOrganizationMember = errors.New("not_organization_member")
	ErrMissingPermissions    = errors.New("missing_permissions")
	ErrGateMisconfigured     = errors.New("gate_misconfigured")
	ErrRateLimited           = errors.New("rate_limited")
	ErrNotFound              = errors.New("not_found")
	ErrInvalidRequest        = errors.New("invalid_request")
)

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	api apiError
}{
	{ErrMissingAuthToken, apiError{http.StatusUnauthorized, "MISSING_AUTH_TOKEN", "Authentication token is missing"}},
	{token.ErrTokenExpired, apiError{http.StatusUnauthorized, "TOKEN_EXPIRED", "Your session has expired, please log in again"}},
	{token.ErrInvalidTokenType, apiError{http.StatusUnauthorized, "INVALID_TOKEN_TYPE", "Token cannot be used for this operation"}},
	{token.ErrInvalidToken, apiError{http.StatusUnauthorized, "INVALID_TOKEN", "Authentication token is invalid"}},
	{orgdomain.ErrInvalidUser, apiError{http.StatusUnauthorized, "INVALID_TOKEN", "Authentication token is invalid"}},
	{authdomain.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "INVALID_CREDIENTIALS", "Invalid email or password"}},

	{ErrNotOrganizationMember, apiError{http.StatusForbidden, codeNotMember, "You are not a member of this organization"}},
	{ErrMissingPermissions, apiError{http.StatusForbidden, codeMissingPermissions, "You do not have permission to perform this action"}},
	{ratingdomain.ErrForbidden, apiError{http.StatusForbidden, "FORBIDDEN", "Rating does not belong to this organization"}},
	{criteriadomain.ErrForbidden, apiError{http.StatusForbidden, "FORBIDDEN", "Criteria does not belong to this organization"}},
	{ratingdomain.ErrNotAuthorized, apiError{http.StatusForbidden, "NOT_AUTHORIZED", "You are not authorized to rate this employee"}},
	{orgdomain.ErrUnauthorized, apiError{http.StatusForbidden, "UNAUTHORIZED", "Only the organization owner can perform this action"}},
	{invitationdomain.ErrGrantNotAllowed, apiError{http.StatusForbidden, codeMissingPermissions, "Your role cannot grant the permissions of the invited role"}},
	{invitationdomain.ErrUserDeactivated, apiError{http.StatusForbidden, "USER_DEACTIVATED", "User has been deactivated in this organization"}},

	{authdomain.ErrUserNotFound, apiError{http.StatusNotFound, "USER_NOT_FOUND", "User not found"}},
	{orgdomain.ErrOrgNotFound, apiError{http.StatusNotFound, "ORG_NOT_FOUND", "Organization not found"}},
	{criteriadomain.ErrInvalidOrganization, apiError{http.StatusNotFound, "ORG_NOT_FOUND", "Organization not found"}},
	{ratingdomain.ErrInvalidOrganization, apiError{http.StatusNotFound, "ORG_NOT_FOUND", "Organization not found"}},
	{invitationdomain.ErrOrganizationNotFound, apiError{http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "Organization not found"}},
	{invitationdomain.ErrInvitationNotFound, apiError{http.StatusNotFound, "INVITATION_NOT_FOUND", "Invitation not found or already accepted"}},
	{orgdomain.ErrSupervisorNotFound, apiError{http.StatusNotFound, "SUPERVISOR_NOT_FOUND", "Supervisor not found in this organization"}},
	{criteriadomain.ErrNotFound, apiError{http.StatusNotFound, "CRITERIA_NOT_FOUND", "Criteria not found"}},
	{ratingdomain.ErrNotFound, apiError{http.StatusNotFound, "RATING_NOT_FOUND", "Rating not found"}},
	{ErrNotFound, apiError{http.StatusNotFound, "NOT_FOUND", "Resource not found"}},

	{authdomain.ErrUserExists, apiError{http.StatusConflict, "USER_ALREADY_EXISTS", "A user with this email already exists"}},
	{authdomain.ErrOrganizationExists, apiError{http.StatusConflict, "ORGANIZATION_NAME_ALREADY_EXISTS", "An organization with this name already exists"}},
	{orgdomain.ErrOrgExists, apiError{http.StatusConflict, "ORG_EXISTS", "An organization with this name already exists"}},
	{invitationdomain.ErrMemberExists, apiError{http.StatusConflict, "MEMBER_ALREADY_EXISTS", "User is already a member of this organization"}},

	{orgdomain.ErrNameRequired, apiError{http.StatusBadRequest, "ORG_NAME_REQUIRED", "Organization name is required"}},
	{orgdomain.ErrInvalidAssignment, apiError{http.StatusBadRequest, "INVALID_ASSIGNMENT", "Assignment would make a supervisor report to their own employee"}},
	{ratingdomain.ErrEmployeeNotInOrg, apiError{http.StatusBadRequest, "EMPLOYEE_NOT_IN_ORG", "Employee is not a member of this organization"}},

	{ErrRateLimited, apiError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later"}},
	{ratingdomain.ErrReportUnavailable, apiError{http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Report rendering is not available"}},
}

// domainFieldErrors are domain validation failures reported as validation-failed.
var domainFieldErrors = []struct {
	err   error
	field FieldError
}{
	{ErrInvalidRequest, FieldError{"body", "Request body is not valid JSON"}},
	{criteriadomain.ErrInvalidName, FieldError{"name", "Criteria name must be at least 2 characters long"}},
	{criteriadomain.ErrInvalidMaxScore, FieldError{"maxScore", "Max score must be a positive 32-bit integer"}},
	{ratingdomain.ErrInvalidPeriod, FieldError{"periodEnd", "Period end cannot be before period start"}},
	{ratingdomain.ErrInvalidScore, FieldError{"criteriaScores", "Scores must be integers of at least 0 and their total must fit in 32 bits"}},
	{ratingdomain.ErrNoScores, FieldError{"criteriaScores", "At least one criteria score is required"}},
	{authdomain.ErrInvalidEmail, FieldError{"email", "Invalid email format"}},
	{authdomain.ErrWeakPassword, FieldError{"password", "Password does not meet the requirements"}},
	{invitationdomain.ErrInvalidRole, FieldError{"role", "The OWNER role is not allowed for invitations"}},
	{pagination.ErrInvalidPageToken, FieldError{"page_token", "Page token is invalid"}},
}

// ErrorHandlingMiddleware writes the error envelope for the last handler error.
func ErrorHandlingMiddleware(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := mapError(lastErr.Err, production)
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("error_code", body.Code),
				zap.Error(lastErr.Err),
			)
		}
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: body})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error, production bool) (int, errorBody) {
	if err == nil {
		return http.StatusInternalServerError, errorBody{Code: codeServerError, Message: "Internal server error"}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorBody{
			Code:    codeValidationFailed,
			Message: "Validation failed",
			Errors:  vErr.Errors,
		}
	}
	for _, entry := range domainFieldErrors {
		if errors.Is(err, entry.err) {
			return http.StatusBadRequest, errorBody{
				Code:    codeValidationFailed,
				Message: "Validation failed",
				Errors:  []FieldError{entry.field},
			}
		}
	}

	var criteriaErr *ratingdomain.InvalidCriteriaError
	if errors.As(err, &criteriaErr) {
		return http.StatusBadRequest, errorBody{
			Code:    "INVALID_CRITERIA",
			Message: "Invalid criteria: " + strings.Join(criteriaErr.IDs, ", "),
		}
	}
	var employeesErr *orgdomain.EmployeesNotFoundError
	if errors.As(err, &employeesErr) {
		return http.StatusBadRequest, errorBody{
			Code:    "EMPLOYEES_NOT_FOUND",
			Message: "Employees not found in this organization: " + strings.Join(employeesErr.IDs, ", "),
		}
	}

	if errors.Is(err, ErrGateMisconfigured) {
		if production {
			return http.StatusInternalServerError, errorBody{Code: codeServerError, Message: "Internal server error"}
		}
		return http.StatusInternalServerError, errorBody{Code: codeDeveloperError, Message: err.Error()}
	}

	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.api.status, errorBody{Code: entry.api.code, Message: entry.api.message}
		}
	}

	return http.StatusInternalServerError, errorBody{Code: codeServerError, Message: "Internal server error"}
}

// classifyErrorForLog feeds the request logger's error_type and error_code fields.
func classifyErrorForLog(err error) (string, string) {
	status, body := mapError(err, true)
	switch {
	case status == http.StatusUnauthorized:
		return "authentication", body.Code
	case status == http.StatusForbidden:
		return "authorization", body.Code
	case status == http.StatusNotFound:
		return "not_found", body.Code
	case status == http.StatusConflict:
		return "conflict", body.Code
	case status == http.StatusTooManyRequests:
		return "rate_limited", body.Code
	case status < http.StatusInternalServerError:
		return "validation", body.Code
	default:
		return "internal", body.Code
	}
}

func misconfiguredGate(route string) error {
	return fmt.Errorf("%w: route %s requires permissions but names no organization parameter", ErrGateMisconfigured, route)
}
