package contextutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the struct's `validate` tags and folds every field failure into a
// single VALIDATION_FAILED error. The returned error lists failures as "Namespace:tag".
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return WrapError(err, "struct validation failed")
	}

	failures := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			failures = append(failures, fmt.Sprintf("%s:%s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		failures = append(failures, fmt.Sprintf("%s:%s", fe.Namespace(), fe.Tag()))
	}

	return NewAppErrorWithCause(ErrorCodeValidationFailed, SeverityWarn,
		ErrValidationFailed.Message, strings.Join(failures, ", "), err)
}
