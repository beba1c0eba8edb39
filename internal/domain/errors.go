package domain

import "errors"

var (
	ErrInvalidClock       = errors.New("invalid clock time")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidProjectPath = errors.New("invalid project path")
	ErrUnknownBucket      = errors.New("unknown stats bucket")
)
