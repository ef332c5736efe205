package errs

import "errors"

var (
	ErrLoopExists     = errors.New("another event loop exists in this thread")
	ErrInvalidAddress = errors.New("invalid tcp address")
	ErrFrameTooLarge  = errors.New("frame length exceeds limit")
)
