package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s-]+$`)
	orgNamePattern    = regexp.MustCompile(`^[a-zA-Z1-9\s-]+$`)
	passwordPattern   = regexp.MustCompile(`^[A-Za-z\d!@#$%^&*]+$`)
	passwordSpecials  = regexp.MustCompile(`[!@#$%^&*]`)
	passwordUpper     = regexp.MustCompile(`[A-Z]`)
	passwordLower     = regexp.MustCompile(`[a-z]`)
	passwordDigit     = regexp.MustCompile(`\d`)
)

var registerValidatorsOnce sync.Once

// registerValidators installs the request rules on gin's shared validator.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("personname", matchString(personNamePattern))
		_ = v.RegisterValidation("orgname", matchString(orgNamePattern))
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return isStrongPassword(fl.Field().String())
		})
		_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
			_, err := parseDate(fl.Field().String())
			return err == nil
		})
	})
}

func matchString(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

func isStrongPassword(value string) bool {
	return passwordPattern.MatchString(value) &&
		passwordUpper.MatchString(value) &&
		passwordLower.MatchString(value) &&
		passwordDigit.MatchString(value) &&
		passwordSpecials.MatchString(value)
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// normalizer trims and case-folds a request before it is validated.
type normalizer interface {
	normalize()
}

// bindJSON decodes, normalizes and validates a request body. An empty body
// decodes to the zero request so that required fields are reported.
func bindJSON(c *gin.Context, req any) error {
	if c.Request.Body != nil {
		if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return newValidationError(typeErr.Field, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()))
			}
			return ErrInvalidRequest
		}
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return translateValidation(err)
	}
	return nil
}

func translateValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ErrInvalidRequest
	}
	out := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationErrors{Errors: out}
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not given", field, strings.ToLower(fe.Param()))
	case "eqfield":
		return "Passwords do not match"
	case "personname":
		return field + " can only contain letters, spaces, and hyphens"
	case "orgname":
		return field + " can only contain letters, digits, spaces, and hyphens"
	case "strongpassword":
		return "Password must contain an uppercase letter, a lowercase letter, a number and one of !@#$%^&*, and nothing else"
	case "date":
		return field + " must be a date (YYYY-MM-DD or RFC3339)"
	default:
		return field + " is invalid"
	}
}
