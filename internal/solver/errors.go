package solver

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for stepping operations.
var (
	// ErrConfiguration indicates a parameter rejected at configuration time.
	ErrConfiguration = errors.New("solver: invalid configuration")

	// ErrStepFailed indicates one or more partitions of a step failed.
	ErrStepFailed = errors.New("solver: step failed")

	// ErrPoolClosed indicates work was submitted to a closed pool.
	ErrPoolClosed = errors.New("solver: worker pool closed")
)

// ConfigError describes a rejected parameter value.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("solver: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// PartitionError records the failure of a single partition task.
type PartitionError struct {
	Offset int
	Stride int
	Err    error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %d/%d: %v", e.Offset, e.Stride, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// PanicError carries the value recovered from a panicking kernel.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("kernel panic: %v", e.Value)
}

// StepFailure is returned by Step when any partition failed. All sibling
// partitions ran to completion and the finalize hook was skipped.
type StepFailure struct {
	Kernel   string
	Failures []*PartitionError
}

func (e *StepFailure) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("solver: step of %s failed: %s", e.Kernel, strings.Join(parts, "; "))
}

func (e *StepFailure) Is(target error) bool {
	return target == ErrStepFailed
}

func (e *StepFailure) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
