package repository

import "errors"

// Sentinel errors translated from driver failures. Callers branch with
// errors.Is; ErrConflict is resolved internally by provisioning and is not
// expected to reach HTTP handlers.
var (
	ErrNotFound        = errors.New("repository: not found")
	ErrConflict        = errors.New("repository: conflict")
	ErrInvalidArgument = errors.New("repository: invalid argument")
	ErrUnavailable     = errors.New("repository: unavailable")
)
