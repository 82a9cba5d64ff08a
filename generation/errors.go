package generation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrStreamCancelled is reported when the consumer stops reading or the
	// request context is cancelled before the model finishes.
	ErrStreamCancelled = errors.New("stream cancelled")
)

// Category classifies a generation failure for the user-facing message.
type Category string

const (
	CategoryNone        Category = ""
	CategoryTimeout     Category = "timeout"
	CategoryRateLimited Category = "rate_limited"
	CategoryGeneric     Category = "generic"
)

// UserMessage returns the text shown to the user for this category.
func (c Category) UserMessage() string {
	switch c {
	case CategoryNone:
		return ""
	case CategoryTimeout:
		return "The request took too long. Please try a simpler question."
	case CategoryRateLimited:
		return "The service is currently busy. Please try again in a moment."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// Classify maps an error to a Category by matching its message.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "rate"), strings.Contains(msg, "quota"):
		return CategoryRateLimited
	default:
		return CategoryGeneric
	}
}

// GenerationFailure is an error raised by the language model call.
type GenerationFailure struct {
	Category Category
	Err      error
}

func (f *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", f.Category, f.Err)
}

func (f *GenerationFailure) Unwrap() error {
	return f.Err
}
