package http

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

var (
	reHex40   = regexp.MustCompile(`^[a-f0-9]{40}$`)
	reHex64   = regexp.MustCompile(`^[a-f0-9]{64}$`)
	reUintStr = regexp.MustCompile(`^(0|[1-9][0-9]*)$`)
)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// account / token address = 40-char lowercase hex
	_ = v.RegisterValidation("hex40", func(fl validator.FieldLevel) bool {
		return reHex40.MatchString(fl.Field().String())
	})
	// position / offering id = 64-char lowercase hex
	_ = v.RegisterValidation("hex64", func(fl validator.FieldLevel) bool {
		return reHex64.MatchString(fl.Field().String())
	})
	// token amounts travel as canonical decimal strings, never floats
	_ = v.RegisterValidation("uintstr", func(fl validator.FieldLevel) bool {
		return reUintStr.MatchString(fl.Field().String())
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field() // you can map to json tag if you prefer
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "hex40":
			out = append(out, FieldError{Field: field, Message: "must be 40-char lowercase hex"})
		case "hex64":
			out = append(out, FieldError{Field: field, Message: "must be 64-char lowercase hex"})
		case "uintstr":
			out = append(out, FieldError{Field: field, Message: "must be an unsigned decimal string"})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
