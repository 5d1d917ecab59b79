// Package enquiry validates contact-form submissions and forwards them to the
// enquiry sink. Validation happens locally so an invalid enquiry never
// reaches the network.
package enquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// PhoneDigits is the number of digits a normalized phone number must have.
	PhoneDigits = 10

	// DefaultSource tags enquiries that do not name where they came from.
	DefaultSource = "website"
)

// ErrInvalidPhone is returned when a phone number does not normalize to PhoneDigits digits.
var ErrInvalidPhone = fmt.Errorf("phone number must have exactly %d digits", PhoneDigits)

// Enquiry is a contact request submitted through the website.
type Enquiry struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,len=10,number"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Subject  string `json:"subject" validate:"max=150"`
	Message  string `json:"message" validate:"max=2000"`
	WhatsApp bool   `json:"whatsapp"`
	Source   string `json:"source" validate:"max=50"`

	// Reference is a client-side correlation id set by Service.Submit.
	Reference string `json:"reference,omitempty" validate:"-"`
}

// Receipt acknowledges a forwarded enquiry.
type Receipt struct {
	EnquiryID string `json:"enquiry_id"`
	Reference string `json:"reference"`
}

// Sink accepts enquiries and returns the identifier it assigned.
type Sink interface {
	SubmitEnquiry(ctx context.Context, e Enquiry) (string, error)
}

// ValidationError lists the invalid fields of an enquiry, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid enquiry: " + strings.Join(parts, "; ")
}

// NormalizePhone strips every non-digit from s and checks that exactly
// PhoneDigits remain.
func NormalizePhone(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	if b.Len() != PhoneDigits {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}

// Normalize trims every text field, normalizes the phone number when it can,
// and applies the default source.
func (e Enquiry) Normalize() Enquiry {
	e.Name = strings.TrimSpace(e.Name)
	e.Email = strings.TrimSpace(e.Email)
	e.Subject = strings.TrimSpace(e.Subject)
	e.Message = strings.TrimSpace(e.Message)
	e.Source = strings.TrimSpace(e.Source)
	if e.Source == "" {
		e.Source = DefaultSource
	}
	if p, err := NormalizePhone(e.Phone); err == nil {
		e.Phone = p
	}
	return e
}

// Validator checks enquiries against their struct rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns a *ValidationError describing every invalid field, or nil.
func (v *Validator) Validate(e Enquiry) error {
	err := v.validate.Struct(e)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate enquiry: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len", "number":
		if fe.Field() == "phone" {
			return ErrInvalidPhone.Error()
		}
		return fmt.Sprintf("must be %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Service forwards valid enquiries to a Sink.
type Service struct {
	sink      Sink
	validator *Validator
	newRef    func() string
}

// NewService returns a Service writing to sink.
func NewService(sink Sink) *Service {
	return &Service{
		sink:      sink,
		validator: NewValidator(),
		newRef:    func() string { return uuid.NewString() },
	}
}

// Submit normalizes and validates e, then forwards it to the sink exactly once.
// A *ValidationError is returned without contacting the sink.
func (s *Service) Submit(ctx context.Context, e Enquiry) (*Receipt, error) {
	e = e.Normalize()
	if err := s.validator.Validate(e); err != nil {
		slog.Debug("enquiry rejected", "error", err)
		return nil, err
	}

	e.Reference = s.newRef()

	id, err := s.sink.SubmitEnquiry(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("failed to submit enquiry %s: %w", e.Reference, err)
	}

	slog.Info("enquiry submitted",
		"enquiry_id", id,
		"reference", e.Reference,
		"source", e.Source,
		"whatsapp", e.WhatsApp)

	return &Receipt{EnquiryID: id, Reference: e.Reference}, nil
}
