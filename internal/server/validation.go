package server

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
)

const (
	msgBodyInvalid   = "Request validation failed"
	msgParamsInvalid = "Parameter validation failed"
	msgQueryInvalid  = "Query parameter validation failed"
)

// FieldError names one violated field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationFailure lists every violated field of one input.
type ValidationFailure struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details"`
}

func (v *ValidationFailure) Error() string {
	fields := make([]string, 0, len(v.Details))
	for _, d := range v.Details {
		fields = append(fields, d.Field)
	}
	return v.Message + ": " + strings.Join(fields, ", ")
}

var (
	bodyValidator  = newValidator("json")
	queryValidator = newValidator("form")
	paramValidator = newValidator("uri")
)

func newValidator(tag string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// IDParams is the shared uuid path parameter schema.
type IDParams struct {
	ID string `uri:"id" validate:"required,uuid"`
}

// PageQuery is the shared pagination and sort schema.
type PageQuery struct {
	pagination.Pagination
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=name created_at"`
	SortOrder string `form:"sortOrder,default=desc" validate:"omitempty,oneof=asc desc"`
}

// BindBody decodes the JSON body into dst and validates it.
func BindBody(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return &ValidationFailure{
				Message: msgBodyInvalid,
				Details: []FieldError{{Field: field, Message: "must be a " + typeErr.Type.String()}},
			}
		}
		return ErrInvalidJSON
	}
	return check(bodyValidator, dst, msgBodyInvalid)
}

// BindQuery binds and validates query parameters.
func BindQuery(c *gin.Context, dst any) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return &ValidationFailure{
			Message: msgQueryInvalid,
			Details: []FieldError{{Field: "query", Message: err.Error()}},
		}
	}
	return check(queryValidator, dst, msgQueryInvalid)
}

// BindParams binds and validates path parameters.
func BindParams(c *gin.Context, dst any) error {
	if err := c.ShouldBindUri(dst); err != nil {
		return &ValidationFailure{
			Message: msgParamsInvalid,
			Details: []FieldError{{Field: "params", Message: err.Error()}},
		}
	}
	return check(paramValidator, dst, msgParamsInvalid)
}

func check(v *validator.Validate, dst any, message string) error {
	err := v.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	details := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationFailure{Message: message, Details: details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "hexcolor":
		return "must be a hex color"
	default:
		return "failed " + fe.Tag() + " constraint"
	}
}
