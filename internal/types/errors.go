/*

This file defines the error taxonomy shared across the engine. Components
join these sentinels with contextual errors so callers can classify failures
with errors.Is while still seeing the detail.

*/

package types

import "errors"

var (
	// ErrValidation covers malformed pool references, out-of-bounds config
	// values and missing collaborators. Nothing is mutated before it fires.
	ErrValidation = errors.New("validation failed")

	// ErrToxicOrderFlow rejects an operation outright: suspicious liquidity
	// adds and detected coordinated attacks. The operation does not commit.
	ErrToxicOrderFlow = errors.New("toxic order flow rejected")

	// ErrEncryptionFailed signals the commit primitive refused the input.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrComputationFailed signals an invalid opaque-handle operation
	// (uninitialized handle, width mismatch, underflow).
	ErrComputationFailed = errors.New("confidential computation failed")

	// ErrExternalSubmission marks a failed execution-network submit. It is
	// non-fatal: the caller proceeds with a locally synthesized batch id.
	ErrExternalSubmission = errors.New("external submission failed")

	// ErrBatchTimeout guards forced resolution of batches still pending
	// after the timeout window.
	ErrBatchTimeout = errors.New("batch not yet timed out")

	// ErrBatchAlreadyProcessed guards the processed->processed transition.
	ErrBatchAlreadyProcessed = errors.New("batch already processed")

	// ErrUnauthorized rejects state-mutating admin calls from identities
	// outside the authorized manager set.
	ErrUnauthorized = errors.New("unauthorized access")

	// ErrPoolNotFound is returned for hooks against pools that were never
	// initialized.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolPaused rejects operations against an emergency-paused pool.
	ErrPoolPaused = errors.New("pool is paused")
)
