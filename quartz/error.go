package quartz

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrIllegalArgument     = errors.New("illegal argument")
	ErrIllegalState        = errors.New("illegal state")
	ErrCronParse           = errors.New("parse cron expression")
	ErrJobNotFound         = errors.New("job not found")
	ErrTriggerNotFound     = errors.New("trigger not found")
	ErrCalendarNotFound    = errors.New("calendar not found")
	ErrObjectAlreadyExists = errors.New("object already exists")
	ErrJobExecution        = errors.New("job execution")
	ErrLockAcquire         = errors.New("acquire lock")
	ErrStoreFatal          = errors.New("job store fatal")
)

// illegalArgumentError returns an illegal argument error with a custom
// error message, which unwraps to ErrIllegalArgument.
func illegalArgumentError(message string) error {
	return fmt.Errorf("%w: %s", ErrIllegalArgument, message)
}

// illegalStateError returns an illegal state error with a custom error
// message, which unwraps to ErrIllegalState.
func illegalStateError(message string) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, message)
}

// cronParseError returns a cron parse error with a custom error message,
// which unwraps to ErrCronParse.
func cronParseError(message string) error {
	return fmt.Errorf("%w: %s", ErrCronParse, message)
}

// jobNotFoundError returns a job not found error with a custom error message,
// which unwraps to ErrJobNotFound.
func jobNotFoundError(message string) error {
	return fmt.Errorf("%w: %s", ErrJobNotFound, message)
}

// triggerNotFoundError returns a trigger not found error with a custom error
// message, which unwraps to ErrTriggerNotFound.
func triggerNotFoundError(message string) error {
	return fmt.Errorf("%w: %s", ErrTriggerNotFound, message)
}

// alreadyExistsError returns an object already exists error with a custom
// error message, which unwraps to ErrObjectAlreadyExists.
func alreadyExistsError(object fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrObjectAlreadyExists, object)
}
