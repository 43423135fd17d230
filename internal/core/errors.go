package core

import "errors"

var (
	// ErrDuplicate is returned by Service.Create when the natural key or a
	// caller-supplied code already exists.
	ErrDuplicate = errors.New("duplicate key: record already exists")

	// ErrUnknownKind is returned for an import kind key that is not registered.
	ErrUnknownKind = errors.New("unknown import kind")

	// ErrUnknownFamily is returned for a code family name that is not registered.
	ErrUnknownFamily = errors.New("unknown code family")

	// ErrInvalidOptions marks a bad delimiter or encoding request.
	ErrInvalidOptions = errors.New("invalid import options")
)
