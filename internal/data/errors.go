package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Account repository sentinels.
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")

	// Batch repository sentinels.
	ErrJobNotFound  = errors.New("batch job not found")
	ErrItemNotFound = errors.New("batch item not found")
)
