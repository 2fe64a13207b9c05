package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("invalid input")
	ErrStorage       = errors.New("storage failure")
	ErrTranscription = errors.New("transcription failure")
	ErrExtraction    = errors.New("entity extraction failure")
	// ErrGeneration never crosses the note creation boundary; composition
	// degrades to deterministic defaults instead of failing the pipeline.
	ErrGeneration  = errors.New("generation failure")
	ErrPersistence = errors.New("persistence failure")
	ErrNotFound    = errors.New("not found")
	ErrTemporary   = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage maps an error to the single human-readable message returned
// to callers. Internal detail (provider names, addresses, wrapped causes)
// stays server-side.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrValidation):
		return "The request is missing or has invalid required fields."
	case IsKind(err, ErrNotFound):
		return "The requested resource was not found."
	case IsKind(err, ErrStorage):
		return "Failed to store the audio recording. Please try again."
	case IsKind(err, ErrTranscription):
		return "Failed to transcribe the audio recording. Please try again."
	case IsKind(err, ErrExtraction):
		return "Failed to analyze the transcript. Please try again."
	case IsKind(err, ErrPersistence):
		return "Failed to save the note. Please try again."
	default:
		return "An unexpected error occurred while creating the note. Please try again."
	}
}
