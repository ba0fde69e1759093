package pipeline

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageData       Stage = "data"
	StageSimulation Stage = "simulation"
	StageAnalysis   Stage = "analysis"
)

// StageError identifies which stage of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Code is the machine-readable error code used by the API, e.g. DATA_ERROR.
func (e *StageError) Code() string {
	return strings.ToUpper(string(e.Stage)) + "_ERROR"
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
