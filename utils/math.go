package utils

import (
	"fmt"

	"github.com/pkg/errors"
)

// Square returns the square of the given value.
func Square(n float64) float64 {
	return n * n
}

// AbsInt returns the absolute value of the given value.
func AbsInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Clamp returns min if value is lesser than min, max if value is greater them max or value.
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func errorFromPanic(thePanic interface{}) error {
	if err, ok := thePanic.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(thePanic))
}
