package payment

import "errors"

var (
	ErrValidation = errors.New("validation error")
)
