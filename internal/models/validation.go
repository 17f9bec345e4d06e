package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels.
var (
	ErrMissingThreadID    = errors.New("thread id is required")
	ErrInvalidKind        = errors.New("interaction kind must be incoming, outgoing or info")
	ErrMissingAuthor      = errors.New("incoming interactions require an author")
	ErrEmptyBody          = errors.New("interaction body is required")
	ErrInvalidAddress     = errors.New("address must not contain whitespace")
	ErrMissingThreadTitle = errors.New("thread title is required")
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors aggregates multiple validation failures.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Add records a validation error for a field.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}

	var nested *ValidationErrors
	if errors.As(err, &nested) {
		for _, sub := range nested.Errors {
			v.Errors = append(v.Errors, ValidationError{
				Field:   joinField(field, sub.Field),
				Message: sub.Message,
				Cause:   sub.Cause,
			})
		}
		return
	}

	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: err.Error(),
		Cause:   err,
	})
}

// AddMessage records a validation error with a custom message.
func (v *ValidationErrors) AddMessage(field, message string) {
	if message == "" {
		return
	}
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

// Err returns nil if there are no errors, otherwise returns the validation error.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Error implements error.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation failed"
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	var builder strings.Builder
	for i, err := range v.Errors {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.Error())
	}

	return builder.String()
}

// Is allows errors.Is to match nested validation errors.
func (v *ValidationErrors) Is(target error) bool {
	if v == nil {
		return false
	}
	for _, err := range v.Errors {
		if err.Cause != nil && errors.Is(err.Cause, target) {
			return true
		}
	}
	return false
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}

// Validate checks an interaction before it is written.
func (i *Interaction) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(i.ThreadID) == "" {
		validation.Add("thread_id", ErrMissingThreadID)
	}
	switch i.Kind {
	case InteractionKindIncoming:
		if strings.TrimSpace(i.Author) == "" {
			validation.Add("author", ErrMissingAuthor)
		}
	case InteractionKindOutgoing, InteractionKindInfo:
	default:
		validation.Add("kind", ErrInvalidKind)
	}
	if strings.TrimSpace(i.Body) == "" {
		validation.Add("body", ErrEmptyBody)
	}
	return validation.Err()
}

// Validate checks a thread before it is written.
func (t *Thread) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(t.Title) == "" {
		validation.Add("title", ErrMissingThreadTitle)
	}
	for idx, p := range t.Participants {
		if p == "" || strings.ContainsAny(p, " \t\n") {
			validation.Add(fmt.Sprintf("participants[%d]", idx), ErrInvalidAddress)
		}
	}
	return validation.Err()
}
