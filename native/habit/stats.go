package habit

import "math/big"

// UserStats is the per-participant running performance record. It is created
// lazily on the first challenge and never destroyed.
type UserStats struct {
	User                   [20]byte
	TotalChallenges        uint32
	ChallengesCompleted    uint32
	ChallengesPartial      uint32
	ChallengesFailed       uint32
	PerfectCompletions     uint32
	TotalSessionsCompleted uint32
	TotalDeposited         *big.Int
	TotalRefunded          *big.Int
	TotalPenalties         *big.Int
	TotalRewardsClaimed    *big.Int
	CurrentStreak          uint32
	BestStreak             uint32
	LastActivity           int64
}

// NewUserStats returns a zeroed stats record for the participant.
func NewUserStats(user [20]byte) *UserStats {
	return &UserStats{
		User:                user,
		TotalDeposited:      big.NewInt(0),
		TotalRefunded:       big.NewInt(0),
		TotalPenalties:      big.NewInt(0),
		TotalRewardsClaimed: big.NewInt(0),
	}
}

// Clone returns a deep copy of the stats record.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalDeposited = cloneOrZero(s.TotalDeposited)
	clone.TotalRefunded = cloneOrZero(s.TotalRefunded)
	clone.TotalPenalties = cloneOrZero(s.TotalPenalties)
	clone.TotalRewardsClaimed = cloneOrZero(s.TotalRewardsClaimed)
	return &clone
}

// Normalize ensures all amount fields are non-nil and returns the receiver.
func (s *UserStats) Normalize() *UserStats {
	if s == nil {
		return nil
	}
	if s.TotalDeposited == nil {
		s.TotalDeposited = big.NewInt(0)
	}
	if s.TotalRefunded == nil {
		s.TotalRefunded = big.NewInt(0)
	}
	if s.TotalPenalties == nil {
		s.TotalPenalties = big.NewInt(0)
	}
	if s.TotalRewardsClaimed == nil {
		s.TotalRewardsClaimed = big.NewInt(0)
	}
	return s
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
