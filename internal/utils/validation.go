package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Field messages shown to users, keyed by struct field name.
var fieldMessages = map[string]string{
	"Age":        "Age must be between 18 and 110",
	"Creatinine": "Please enter a valid creatinine value",
	"HCPID":      "Please enter your HCP ID",
	"NHSNumber":  "Please enter a valid 10-digit NHS number",
}

var nhsNumberPattern = regexp.MustCompile(`^\d{10}$`)

// ValidNHSNumber reports whether s is exactly ten digits.
func ValidNHSNumber(s string) bool {
	return nhsNumberPattern.MatchString(s)
}

// FieldMessage returns the user-facing message for a struct field.
func FieldMessage(structField string) string {
	if msg, ok := fieldMessages[structField]; ok {
		return msg
	}
	return ""
}

// FormatValidationError turns validation errors into a map of JSON field name to message.
// obj is the struct that was validated; it supplies the JSON names.
func FormatValidationError(err error, obj interface{}) map[string]string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		name := jsonFieldName(obj, e.StructField())
		if msg := FieldMessage(e.StructField()); msg != "" {
			fields[name] = msg
			continue
		}
		fields[name] = fmt.Sprintf("%s failed the %s check", name, e.Tag())
	}
	return fields
}

func jsonFieldName(obj interface{}, structField string) string {
	t := reflect.TypeOf(obj)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return structField
	}
	f, ok := t.FieldByName(structField)
	if !ok {
		return structField
	}
	for _, key := range []string{"json", "form"} {
		name := strings.Split(f.Tag.Get(key), ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return structField
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if fields := FormatValidationError(err, obj); fields != nil {
			ValidationFailed(c, fields)
			return false
		}
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		if fields := FormatValidationError(err, obj); fields != nil {
			ValidationFailed(c, fields)
			return false
		}
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return false
	}
	return true
}
