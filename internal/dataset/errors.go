package dataset

import (
	"errors"
	"fmt"
)

// ErrTrainingData marks a dataset that cannot be trained on.
var ErrTrainingData = errors.New("training data error")

// DataError records which stage rejected a dataset.
type DataError struct {
	Stage string // primary, aux, combine, split
	Err   error
}

func (e *DataError) Error() string { return fmt.Sprintf("%s dataset: %v", e.Stage, e.Err) }

func (e *DataError) Unwrap() []error { return []error{ErrTrainingData, e.Err} }

func dataErr(stage string, format string, args ...any) error {
	return &DataError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
