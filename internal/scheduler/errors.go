package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("invalid task")
	// ErrUnknownPolicy is matched by every UnknownPolicyError.
	ErrUnknownPolicy = errors.New("unknown scheduling policy")
	// ErrAlreadyRun is returned when Run is called on a finished scheduler.
	ErrAlreadyRun = errors.New("scheduler has already run")
)

// ValidationError describes a malformed task or pool input.
type ValidationError struct {
	Task   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid task %q: %s %s", e.Task, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnknownPolicyError is returned for a policy name outside the known set.
type UnknownPolicyError struct {
	Name string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown scheduling policy %q (known: %s)", e.Name, policyNames())
}

func (e *UnknownPolicyError) Is(target error) bool { return target == ErrUnknownPolicy }
