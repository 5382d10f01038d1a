package core

import "errors"

// Error taxonomy shared by every processing package. Packages wrap these with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is.
var (
	// ErrConfiguration reports an invalid construction-time parameter.
	ErrConfiguration = errors.New("core: invalid configuration")
	// ErrResourceExhausted reports that a bounded resource, usually the buffer
	// pool, has nothing left to hand out. The condition is recoverable.
	ErrResourceExhausted = errors.New("core: resource exhausted")
	// ErrAlignment reports a buffer that violates the vector alignment
	// precondition.
	ErrAlignment = errors.New("core: misaligned buffer")
	// ErrBusy reports a reentrant call into a non-reentrant processor.
	ErrBusy = errors.New("core: processor busy")
	// ErrProcessing reports a numeric failure while processing a buffer.
	ErrProcessing = errors.New("core: processing failure")
	// ErrQualityThresholdExceeded reports that a candidate configuration
	// measured above the distortion ceiling and was not applied.
	ErrQualityThresholdExceeded = errors.New("core: quality threshold exceeded")
	// ErrInvalidArgument reports an out-of-range runtime parameter.
	ErrInvalidArgument = errors.New("core: invalid argument")
	// ErrInvalidInput reports malformed sample data, e.g. an empty buffer.
	ErrInvalidInput = errors.New("core: invalid input")
)
