package accuracy

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrAlreadyAveraged is returned when a finalized StaticError is folded or finalized again
	ErrAlreadyAveraged = errors.New("static error already averaged")
	// ErrInvalidSample is returned for negative or non-finite error samples
	ErrInvalidSample = errors.New("invalid error sample")
)

// StaticError accumulates the systematic error of a calibration method in meters.
// It is a value: AddError and AverageErrors return the next state and never
// mutate the receiver.
type StaticError struct {
	Count        int
	AverageError float64
	MaxError     float64

	sum      float64
	averaged bool
}

// AddError folds one sample into the accumulator
func (e StaticError) AddError(sample float64) (StaticError, error) {
	if e.averaged {
		return e, ErrAlreadyAveraged
	}
	if math.IsNaN(sample) || math.IsInf(sample, 0) || sample < 0 {
		return e, fmt.Errorf("%w: %v", ErrInvalidSample, sample)
	}

	e.Count++
	e.sum += sample
	if sample > e.MaxError {
		e.MaxError = sample
	}
	return e, nil
}

// AverageErrors turns the running sum into the average. It succeeds exactly
// once; without samples the average stays 0.
func (e StaticError) AverageErrors() (StaticError, error) {
	if e.averaged {
		return e, ErrAlreadyAveraged
	}
	if e.Count > 0 {
		e.AverageError = e.sum / float64(e.Count)
	}
	e.averaged = true
	return e, nil
}

// Averaged reports whether AverageErrors has run
func (e StaticError) Averaged() bool {
	return e.averaged
}

// FoldErrors adds every sample and finalizes the result
func FoldErrors(samples []float64) (StaticError, error) {
	var acc StaticError
	var err error
	for i, s := range samples {
		if acc, err = acc.AddError(s); err != nil {
			return StaticError{}, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return acc.AverageErrors()
}

func (e StaticError) String() string {
	return fmt.Sprintf("max %.3f m, average %.3f m over %d samples", e.MaxError, e.AverageError, e.Count)
}
