package errors

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StagePersist  Stage = "persist"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// PipelineError records which step of ingestion or answering failed.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func Wrap(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Stage == stage {
		return err
	}
	return &PipelineError{Stage: stage, Err: err}
}

// StageOf returns the outermost failing stage, or "" when err did not come
// from the pipeline.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
