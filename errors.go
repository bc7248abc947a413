package heapkit

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// MultipleError is the error returned from CheckMultiple if the number being tested is not a multiple of the factor
var MultipleError error = errors.New("number must be a multiple of the factor")
