package habit

import "errors"

// Validation errors: the request itself is malformed or out of range. Nothing
// is mutated and nothing should be retried without correcting the input.
var (
	ErrInvalidPercentageSplit = errors.New("habit: percentages must sum to 100")
	ErrInvalidDepositBounds   = errors.New("habit: min deposit exceeds max deposit")
	ErrDepositTooSmall        = errors.New("habit: deposit below minimum")
	ErrDepositTooLarge        = errors.New("habit: deposit above maximum")
	ErrInvalidSessionCount    = errors.New("habit: session count out of range")
	ErrInvalidDuration        = errors.New("habit: duration out of range")
	ErrInvalidChallengeType   = errors.New("habit: invalid challenge type")
	ErrInvalidProofHash       = errors.New("habit: invalid proof hash format")
	ErrSessionTooShort        = errors.New("habit: session duration below type minimum")
	ErrInvalidToken           = errors.New("habit: unsupported token")
	ErrInvalidTreasury        = errors.New("habit: treasury not configured")
	ErrInvalidCharity         = errors.New("habit: charity destination not configured")
)

// Authorization errors: the caller identity does not satisfy the operation's
// signer requirements.
var (
	ErrUnauthorized            = errors.New("habit: unauthorized")
	ErrUnauthorizedVerifier    = errors.New("habit: signer is not the assigned verifier")
	ErrUnauthorizedParticipant = errors.New("habit: signer is not the participant")
	ErrSelfVerification        = errors.New("habit: participant cannot verify own session")
)

// State errors: the entity exists but is in the wrong lifecycle state for the
// requested transition.
var (
	ErrNotInitialized      = errors.New("habit: protocol not initialized")
	ErrAlreadyInitialized  = errors.New("habit: protocol already initialized")
	ErrProtocolPaused      = errors.New("habit: protocol paused")
	ErrChallengeNotFound   = errors.New("habit: challenge not found")
	ErrChallengeExists     = errors.New("habit: challenge already exists")
	ErrChallengeNotActive  = errors.New("habit: challenge not active")
	ErrChallengeExpired    = errors.New("habit: challenge expired")
	ErrNoVerifier          = errors.New("habit: no verifier assigned")
	ErrAllSessionsComplete = errors.New("habit: all sessions already completed")
	ErrSessionTooSoon      = errors.New("habit: minimum interval since last session not met")
	ErrSessionExists       = errors.New("habit: session already recorded")
	ErrNoGracePeriodsLeft  = errors.New("habit: grace period allowance exhausted")
	ErrGraceRecordExists   = errors.New("habit: grace record already exists")
	ErrCannotFinalizeYet   = errors.New("habit: cannot finalize before expiry or full completion")
	ErrAlreadyFinalized    = errors.New("habit: challenge already finalized")
)

// Arithmetic errors: any overflow aborts the operation with no partial state
// change.
var (
	ErrTimeOverflow = errors.New("habit: time calculation overflow")
	ErrAmountRange  = errors.New("habit: amount out of range")
)
