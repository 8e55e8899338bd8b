package apperror

import "errors"

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrStepOutOfRange = errors.New("step is out of history range")
)
