package chain

import "errors"

var (
	// ErrConfiguration means no ledger secret is provisioned. Nothing may be
	// hashed or verified without it.
	ErrConfiguration = errors.New("ledger secret not configured")

	// ErrSchemaMismatch means the store header is neither the base nor the
	// extended column set.
	ErrSchemaMismatch = errors.New("ledger schema mismatch")

	// ErrSchemaNotUpgraded means a write was attempted against a base-width
	// store that has not been migrated.
	ErrSchemaNotUpgraded = errors.New("ledger schema not upgraded to extended width")

	// ErrPreflightFailed means the chain tail looks corrupted or partially
	// written; an operator must investigate before further writes.
	ErrPreflightFailed = errors.New("ledger preflight failed")

	ErrUnauthorizedActor   = errors.New("unauthorized actor")
	ErrAttributionRequired = errors.New("caller identity required")

	// ErrLockTimeout is transient; callers may retry.
	ErrLockTimeout = errors.New("timed out waiting for ledger append lock")

	ErrRowOutOfRange = errors.New("ledger row out of range")
)
