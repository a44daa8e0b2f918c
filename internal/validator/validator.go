package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,32}$`)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("password_strength", validatePasswordStrength)
	v.RegisterValidation("room_code", validateRoomCode)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// validatePasswordStrength requires at least 8 characters with a letter and a digit.
func validatePasswordStrength(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	return hasLetter && hasDigit
}

func validateRoomCode(fl validator.FieldLevel) bool {
	return roomCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

// Describe flattens validation failures into one message per field, keyed by
// the field's JSON name when the struct was validated with json tags.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "password_strength":
		return fmt.Sprintf("%s must be at least 8 characters and contain a letter and a digit", field)
	case "room_code":
		return fmt.Sprintf("%s must be 4 to 32 letters, digits, '-' or '_'", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
