package rewards

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	"habitvault/native/habit"
)

// ScorePolicy derives the performance score a finalization record contributes
// to its participant during an epoch distribution. The weighting is a protocol
// parameter, not a fixed constant, so deployments can swap the formula.
type ScorePolicy interface {
	Score(record *habit.FinalizationRecord, stats *habit.UserStats) *big.Int
}

// WeightedScorePolicy is the default policy: completion rate and current
// streak are weighted linearly, and participants with a clean failure history
// receive a flat consistency bonus.
type WeightedScorePolicy struct {
	RateWeight       uint64
	StreakWeight     uint64
	ConsistencyBonus uint64
}

// DefaultScorePolicy returns the weighting applied when a deployment does not
// configure its own.
func DefaultScorePolicy() WeightedScorePolicy {
	return WeightedScorePolicy{RateWeight: 1, StreakWeight: 250, ConsistencyBonus: 500}
}

// Score implements ScorePolicy.
func (p WeightedScorePolicy) Score(record *habit.FinalizationRecord, stats *habit.UserStats) *big.Int {
	if record == nil {
		return big.NewInt(0)
	}
	score := new(big.Int).SetUint64(record.CompletionRateBps)
	score.Mul(score, new(big.Int).SetUint64(p.RateWeight))
	if stats != nil {
		streak := new(big.Int).SetUint64(uint64(stats.CurrentStreak))
		streak.Mul(streak, new(big.Int).SetUint64(p.StreakWeight))
		score.Add(score, streak)
		if stats.ChallengesFailed == 0 {
			score.Add(score, new(big.Int).SetUint64(p.ConsistencyBonus))
		}
	}
	return score
}

// WeightEntry represents the aggregate score for a participant.
type WeightEntry struct {
	Address [20]byte
	Weight  *big.Int
}

// Share represents a deterministic reward allocation for a participant.
type Share struct {
	Address [20]byte
	Amount  *big.Int
}

// Distribution summarises an epoch pool split.
type Distribution struct {
	Shares        []Share
	TotalAssigned *big.Int
	Dust          *big.Int
}

// NormalizedWeights merges duplicate addresses and returns a deterministically
// ordered slice alongside the aggregate weight sum. Zero or nil weights are
// skipped.
func NormalizedWeights(weights []WeightEntry) ([]WeightEntry, *big.Int, error) {
	merged := make(map[[20]byte]*big.Int)
	total := big.NewInt(0)
	for _, entry := range weights {
		if entry.Weight == nil || entry.Weight.Sign() == 0 {
			continue
		}
		if entry.Weight.Sign() < 0 {
			return nil, nil, errors.New("rewards: weight cannot be negative")
		}
		acc, ok := merged[entry.Address]
		if !ok {
			acc = big.NewInt(0)
			merged[entry.Address] = acc
		}
		acc.Add(acc, entry.Weight)
	}
	normalized := make([]WeightEntry, 0, len(merged))
	for addr, weight := range merged {
		normalized = append(normalized, WeightEntry{Address: addr, Weight: new(big.Int).Set(weight)})
		total.Add(total, weight)
	}
	sort.Slice(normalized, func(i, j int) bool {
		return bytes.Compare(normalized[i].Address[:], normalized[j].Address[:]) < 0
	})
	return normalized, total, nil
}

// SplitPool deterministically allocates the epoch pool across the supplied
// weight entries. Each share truncates; the leftover dust is reported so the
// caller can carry it in the vault for the next epoch.
func SplitPool(pool *big.Int, weights []WeightEntry) (*Distribution, error) {
	if pool == nil {
		pool = big.NewInt(0)
	}
	if pool.Sign() < 0 {
		return nil, errors.New("rewards: pool cannot be negative")
	}
	normalized, totalWeight, err := NormalizedWeights(weights)
	if err != nil {
		return nil, err
	}
	distribution := &Distribution{
		Shares:        make([]Share, len(normalized)),
		TotalAssigned: big.NewInt(0),
		Dust:          big.NewInt(0),
	}
	if totalWeight.Sign() == 0 {
		distribution.Dust = new(big.Int).Set(pool)
		return distribution, nil
	}
	for i, entry := range normalized {
		numerator := new(big.Int).Mul(pool, entry.Weight)
		quotient := new(big.Int).Div(numerator, totalWeight)
		distribution.Shares[i] = Share{Address: entry.Address, Amount: quotient}
		distribution.TotalAssigned.Add(distribution.TotalAssigned, quotient)
	}
	distribution.Dust.Sub(pool, distribution.TotalAssigned)
	return distribution, nil
}
