package request

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// ErrConfig is the parent of every error raised while finalizing a [Spec].
	ErrConfig = errors.New("invalid request config")
	// ErrUnsupportedMethod is returned for methods outside GET, HEAD, POST, PUT, PATCH and DELETE.
	ErrUnsupportedMethod = fmt.Errorf("%w: unsupported method", ErrConfig)
	// ErrMissingBody is returned when POST, PUT or PATCH is finalized without a body.
	ErrMissingBody = fmt.Errorf("%w: method requires a body", ErrConfig)
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// FieldError describes a single invalid field of a [Spec].
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	d, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// Fields returns the failed fields keyed by name.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}
	return m
}

// validateStruct checks val against its declared tags.
func validateStruct(val any) error {
	if err := validate.Struct(val); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Field(),
				Err:   customErrForTag(verror.Tag(), verror),
			})
		}
		return fmt.Errorf("%w: %w", ErrConfig, fields)
	}

	return nil
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	case "url":
		return fmt.Sprintf("%q is not a valid URL", verror.Value())
	default:
		return verror.Translate(translator)
	}
}
