package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction signals an unparseable or corrupt source document.
	ErrExtraction = errors.New("document extraction failed")
	// ErrIndexBuild signals an embedding provider failure during index construction.
	ErrIndexBuild = errors.New("semantic index build failed")
	// ErrTemplate signals a prompt template missing a required placeholder.
	ErrTemplate = errors.New("malformed prompt template")
	// ErrNoContent signals that no source material was provided to generate from.
	ErrNoContent = errors.New("no content to generate from")
	// ErrUnsupportedModel signals a model identifier outside the configured set.
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrGeneration signals a generation provider failure.
	ErrGeneration = errors.New("generation failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// GenerationError wraps ErrGeneration with a retryability classification so
// callers can decide whether a retry is worthwhile.
type GenerationError struct {
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s (%s): %v", ErrGeneration.Error(), kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return ErrGeneration }

// NewGenerationError classifies a generation provider failure.
func NewGenerationError(retryable bool, err error) error {
	return &GenerationError{Retryable: retryable, Err: err}
}

// IsRetryableGeneration reports whether err is a generation failure worth retrying.
func IsRetryableGeneration(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Retryable
}

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageValidating       Stage = "validating"
	StageExtractingStyle  Stage = "extracting_style"
	StageExtractingSource Stage = "extracting_content"
	StageBuildingIndexes  Stage = "building_indexes"
	StageRetrieving       Stage = "retrieving"
	StageComposing        Stage = "composing"
	StageGenerating       Stage = "generating"
)

// PipelineError attributes a failure to the pipeline stage it occurred in.
// The wrapped error keeps its sentinel identity for errors.Is checks.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError tags err with the failing stage.
func NewPipelineError(stage Stage, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}

// StageOf extracts the failing stage from err, or "" if untagged.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
