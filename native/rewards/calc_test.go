package rewards

import (
	"math/big"
	"testing"

	"habitvault/native/habit"
)

func TestWeightedScorePolicy(t *testing.T) {
	policy := DefaultScorePolicy()
	record := &habit.FinalizationRecord{CompletionRateBps: 8_000}

	// No stats: rate weight only.
	if got := policy.Score(record, nil); got.Cmp(big.NewInt(8_000)) != 0 {
		t.Fatalf("score without stats %s, want 8000", got)
	}

	stats := &habit.UserStats{CurrentStreak: 4}
	// 8000*1 + 4*250 + 500 consistency bonus.
	if got := policy.Score(record, stats); got.Cmp(big.NewInt(9_500)) != 0 {
		t.Fatalf("score %s, want 9500", got)
	}

	stats.ChallengesFailed = 2
	// The bonus drops once any challenge has failed.
	if got := policy.Score(record, stats); got.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("score with failures %s, want 9000", got)
	}

	if got := policy.Score(nil, stats); got.Sign() != 0 {
		t.Fatalf("nil record must score zero, got %s", got)
	}
}

func TestNormalizedWeights(t *testing.T) {
	a := [20]byte{0x02}
	b := [20]byte{0x01}
	entries := []WeightEntry{
		{Address: a, Weight: big.NewInt(10)},
		{Address: b, Weight: big.NewInt(5)},
		{Address: a, Weight: big.NewInt(3)},
		{Address: b, Weight: nil},
		{Address: b, Weight: big.NewInt(0)},
	}
	normalized, total, err := NormalizedWeights(entries)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if total.Cmp(big.NewInt(18)) != 0 {
		t.Fatalf("total %s, want 18", total)
	}
	if len(normalized) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(normalized))
	}
	// Ordered by address bytes, so b before a.
	if normalized[0].Address != b || normalized[0].Weight.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected first entry: %+v", normalized[0])
	}
	if normalized[1].Address != a || normalized[1].Weight.Cmp(big.NewInt(13)) != 0 {
		t.Fatalf("unexpected second entry: %+v", normalized[1])
	}

	if _, _, err := NormalizedWeights([]WeightEntry{{Address: a, Weight: big.NewInt(-1)}}); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestSplitPool(t *testing.T) {
	a := [20]byte{0x01}
	b := [20]byte{0x02}
	weights := []WeightEntry{
		{Address: a, Weight: big.NewInt(2)},
		{Address: b, Weight: big.NewInt(1)},
	}
	distribution, err := SplitPool(big.NewInt(100), weights)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if distribution.Shares[0].Amount.Cmp(big.NewInt(66)) != 0 {
		t.Fatalf("share a %s, want 66", distribution.Shares[0].Amount)
	}
	if distribution.Shares[1].Amount.Cmp(big.NewInt(33)) != 0 {
		t.Fatalf("share b %s, want 33", distribution.Shares[1].Amount)
	}
	if distribution.TotalAssigned.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("assigned %s, want 99", distribution.TotalAssigned)
	}
	// The truncated unit remains as dust for the next epoch.
	if distribution.Dust.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("dust %s, want 1", distribution.Dust)
	}
}

func TestSplitPoolEdgeCases(t *testing.T) {
	a := [20]byte{0x01}

	distribution, err := SplitPool(big.NewInt(100), nil)
	if err != nil {
		t.Fatalf("split with no weights: %v", err)
	}
	if distribution.Dust.Cmp(big.NewInt(100)) != 0 || distribution.TotalAssigned.Sign() != 0 {
		t.Fatalf("empty weights must leave the pool as dust: %+v", distribution)
	}

	distribution, err = SplitPool(nil, []WeightEntry{{Address: a, Weight: big.NewInt(1)}})
	if err != nil {
		t.Fatalf("split with nil pool: %v", err)
	}
	if distribution.TotalAssigned.Sign() != 0 {
		t.Fatalf("nil pool must assign nothing")
	}

	if _, err := SplitPool(big.NewInt(-1), nil); err == nil {
		t.Fatalf("expected error for negative pool")
	}
}
