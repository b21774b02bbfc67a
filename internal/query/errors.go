package query

import (
	"errors"
	"fmt"
)

// Stage names one step of the query pipeline. Errors carry the stage that
// failed.
type Stage string

const (
	StageReceived   Stage = "received"
	StageDetected   Stage = "detected"
	StageEmbedded   Stage = "embedded"
	StageRetrieved  Stage = "retrieved"
	StageReconciled Stage = "reconciled"
	StagePrompted   Stage = "prompted"
	StageGenerated  Stage = "generated"
	StageAssembled  Stage = "assembled"
)

var (
	ErrStoreUnavailable  = errors.New("knowledge store unavailable")
	ErrEmbedding         = errors.New("query embedding failed")
	ErrTranslation       = errors.New("chunk translation failed")
	ErrGeneration        = errors.New("answer generation failed")
	ErrGenerationTimeout = errors.New("answer generation timed out")
)

// StageError wraps a pipeline failure with the stage it occurred at, so
// callers can log and map errors without string matching.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("query pipeline failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
