package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyLockTTL bounds how long an in-flight claim blocks retries
	// if the server dies before finishing the request
	IdempotencyLockTTL = time.Minute

	// DefaultPartyCacheTTL is how long a party read stays cached
	DefaultPartyCacheTTL = 5 * time.Minute

	// reconcileBatchSize bounds how many parties one report page loads
	reconcileBatchSize = 100
)
