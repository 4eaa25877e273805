package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Billing errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidPlan        = errors.New("invalid plan")
	ErrPaymentProvider    = errors.New("payment provider error")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrRateLimited        = errors.New("too many checkout attempts")
)
