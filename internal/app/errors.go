package app

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("daily exam limit reached")
	ErrConflictsExist   = errors.New("unresolved conflicts exist")
	ErrInvalidInput     = errors.New("invalid input")
)
