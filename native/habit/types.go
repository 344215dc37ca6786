package habit

import (
	"fmt"
	"math/big"
	"strings"
)

// ChallengeStatus represents the lifecycle states of a challenge. The three
// non-active states are terminal: once assigned, no transition moves a
// challenge out of them.
type ChallengeStatus uint8

const (
	ChallengeActive ChallengeStatus = iota
	ChallengeCompleted
	ChallengePartiallyCompleted
	ChallengeFailed
)

// Valid reports whether the status value is within the supported range.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengeActive, ChallengeCompleted, ChallengePartiallyCompleted, ChallengeFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the challenge lifecycle.
func (s ChallengeStatus) Terminal() bool {
	switch s {
	case ChallengeCompleted, ChallengePartiallyCompleted, ChallengeFailed:
		return true
	default:
		return false
	}
}

func (s ChallengeStatus) String() string {
	switch s {
	case ChallengeActive:
		return "active"
	case ChallengeCompleted:
		return "completed"
	case ChallengePartiallyCompleted:
		return "partially_completed"
	case ChallengeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChallengeType categorises a challenge and determines the minimum attested
// session duration.
type ChallengeType uint8

const (
	ChallengeTypeFitness ChallengeType = iota
	ChallengeTypeEducation
	ChallengeTypeMeditation
	ChallengeTypeCustom
)

// Valid reports whether the type value is within the supported range.
func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeTypeFitness, ChallengeTypeEducation, ChallengeTypeMeditation, ChallengeTypeCustom:
		return true
	default:
		return false
	}
}

func (t ChallengeType) String() string {
	switch t {
	case ChallengeTypeFitness:
		return "fitness"
	case ChallengeTypeEducation:
		return "education"
	case ChallengeTypeMeditation:
		return "meditation"
	case ChallengeTypeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MinimumSessionMinutes returns the minimum attested duration for sessions of
// this challenge type. Custom challenges carry no minimum.
func (t ChallengeType) MinimumSessionMinutes() uint16 {
	switch t {
	case ChallengeTypeFitness:
		return 20
	case ChallengeTypeEducation:
		return 30
	case ChallengeTypeMeditation:
		return 10
	case ChallengeTypeCustom:
		return 0
	default:
		return 0
	}
}

const (
	// CompletionRateDenominator expresses completion rates with two implied
	// decimal places (10000 == 100.00%).
	CompletionRateDenominator = 10_000
	// PartialCompletionThresholdBps is the lowest completion rate still
	// classified as a partial completion.
	PartialCompletionThresholdBps = 8_000

	// MinTotalSessions and MaxTotalSessions bound the session count accepted
	// at challenge creation.
	MinTotalSessions = 1
	MaxTotalSessions = 365
	// MinDurationDays and MaxDurationDays bound the challenge window.
	MinDurationDays = 7
	MaxDurationDays = 365
	// MinIntervalHours and MaxIntervalHours clamp the derived minimum spacing
	// between attested sessions.
	MinIntervalHours = 12
	MaxIntervalHours = 48

	// GraceExtensionSeconds is the fixed deadline extension granted per grace
	// period use.
	GraceExtensionSeconds = 3 * 86_400
	// DefaultMaxGracePeriods bounds grace period usage per challenge.
	DefaultMaxGracePeriods = 3

	secondsPerDay  = 86_400
	secondsPerHour = 3_600
)

// Challenge captures a participant's collateral-backed commitment.
type Challenge struct {
	ID                   [32]byte
	Participant          [20]byte
	DepositAmount        *big.Int
	TotalSessions        uint32
	CompletedSessions    uint32
	StartTime            int64
	EndTime              int64
	LastSessionTime      int64
	Status               ChallengeStatus
	Verifier             *[20]byte
	Ordinal              uint64
	Type                 ChallengeType
	MinimumIntervalHours uint16
	GracePeriodsUsed     uint8
	MaxGracePeriods      uint8
}

// Clone returns a deep copy of the challenge so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	clone := *c
	if c.DepositAmount != nil {
		clone.DepositAmount = new(big.Int).Set(c.DepositAmount)
	} else {
		clone.DepositAmount = big.NewInt(0)
	}
	if c.Verifier != nil {
		verifier := *c.Verifier
		clone.Verifier = &verifier
	}
	return &clone
}

// SessionMetadata carries the attested details of a single session. A zero
// duration means the verifier supplied none, which fails the per-type minimum
// for every type except Custom.
type SessionMetadata struct {
	DurationMinutes uint16
	Location        string
	Notes           string
}

// Session is one attested unit of challenge progress. Sessions are written
// exactly once and never mutated.
type Session struct {
	ID            [32]byte
	Challenge     [32]byte
	SessionNumber uint32
	Timestamp     int64
	ProofHash     string
	VerifiedBy    [20]byte
	Metadata      SessionMetadata
	AutoVerified  bool
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// GracePeriodRecord is an append-only audit entry for one grace period use,
// keyed by the pre-increment usage counter.
type GracePeriodRecord struct {
	ID         [32]byte
	Challenge  [32]byte
	Ordinal    uint8
	Reason     string
	UsedAt     int64
	NewEndTime int64
}

// Clone returns a copy of the record.
func (g *GracePeriodRecord) Clone() *GracePeriodRecord {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

// FinalizationRecord captures the exactly-once settlement outcome of a
// challenge. Rewarded flips once the reward distribution engine has consumed
// the record's reward-pool contribution.
type FinalizationRecord struct {
	Challenge              [32]byte
	Participant            [20]byte
	CompletionRateBps      uint64
	PenaltyAmount          *big.Int
	RewardPoolContribution *big.Int
	Timestamp              int64
	Rewarded               bool
}

// Clone returns a deep copy of the record.
func (f *FinalizationRecord) Clone() *FinalizationRecord {
	if f == nil {
		return nil
	}
	clone := *f
	if f.PenaltyAmount != nil {
		clone.PenaltyAmount = new(big.Int).Set(f.PenaltyAmount)
	} else {
		clone.PenaltyAmount = big.NewInt(0)
	}
	if f.RewardPoolContribution != nil {
		clone.RewardPoolContribution = new(big.Int).Set(f.RewardPoolContribution)
	} else {
		clone.RewardPoolContribution = big.NewInt(0)
	}
	return &clone
}

// MinimumInterval derives the minimum spacing between sessions from the
// challenge window and session count, clamped to [MinIntervalHours,
// MaxIntervalHours].
func MinimumInterval(totalSessions, durationDays uint32) uint16 {
	if totalSessions == 0 {
		return MaxIntervalHours
	}
	hours := durationDays * 24 / totalSessions
	if hours < MinIntervalHours {
		return MinIntervalHours
	}
	if hours > MaxIntervalHours {
		return MaxIntervalHours
	}
	return uint16(hours)
}

const proofHashLength = 46

var proofHashAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidateProofHash checks that the proof identifier matches the expected
// content-address format: 46 characters, "Qm" prefix, base58 alphabet.
func ValidateProofHash(hash string) error {
	if len(hash) != proofHashLength || !strings.HasPrefix(hash, "Qm") {
		return ErrInvalidProofHash
	}
	for _, c := range hash {
		if !strings.ContainsRune(proofHashAlphabet, c) {
			return ErrInvalidProofHash
		}
	}
	return nil
}

// ValidateMetadata enforces the challenge-type minimum session duration.
func ValidateMetadata(challengeType ChallengeType, metadata SessionMetadata) error {
	if !challengeType.Valid() {
		return fmt.Errorf("habit: invalid challenge type %d", challengeType)
	}
	if metadata.DurationMinutes < challengeType.MinimumSessionMinutes() {
		return ErrSessionTooShort
	}
	return nil
}
