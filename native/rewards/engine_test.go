package rewards

import (
	"errors"
	"math/big"
	"testing"

	"habitvault/core/types"
	"habitvault/native/habit"
)

type mockState struct {
	config        *habit.Config
	rewardState   *RewardState
	finalizations map[[32]byte]*habit.FinalizationRecord
	stats         map[[20]byte]*habit.UserStats
	claimable     map[[20]byte]*big.Int
	accounts      map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		finalizations: make(map[[32]byte]*habit.FinalizationRecord),
		stats:         make(map[[20]byte]*habit.UserStats),
		claimable:     make(map[[20]byte]*big.Int),
		accounts:      make(map[[20]byte]*types.Account),
	}
}

func (m *mockState) ConfigGet() (*habit.Config, bool) {
	if m.config == nil {
		return nil, false
	}
	return m.config.Clone(), true
}

func (m *mockState) RewardStateGet() (*RewardState, bool) {
	if m.rewardState == nil {
		return nil, false
	}
	return m.rewardState.Clone(), true
}

func (m *mockState) RewardStatePut(state *RewardState) error {
	m.rewardState = state.Clone()
	return nil
}

func (m *mockState) PendingFinalizations() ([]*habit.FinalizationRecord, error) {
	pending := make([]*habit.FinalizationRecord, 0, len(m.finalizations))
	for _, record := range m.finalizations {
		if record.Rewarded {
			continue
		}
		pending = append(pending, record.Clone())
	}
	return pending, nil
}

func (m *mockState) FinalizationPut(record *habit.FinalizationRecord) error {
	m.finalizations[record.Challenge] = record.Clone()
	return nil
}

func (m *mockState) UserStatsGet(addr [20]byte) (*habit.UserStats, bool) {
	stats, ok := m.stats[addr]
	if !ok {
		return nil, false
	}
	return stats.Clone(), true
}

func (m *mockState) UserStatsPut(stats *habit.UserStats) error {
	m.stats[stats.User] = stats.Clone()
	return nil
}

func (m *mockState) ClaimableGet(addr [20]byte) (*big.Int, error) {
	if amount, ok := m.claimable[addr]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) ClaimablePut(addr [20]byte, amount *big.Int) error {
	m.claimable[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	if acc, ok := m.accounts[key]; ok {
		return acc.Clone(), nil
	}
	return types.NewAccount(), nil
}

func (m *mockState) PutAccount(addr []byte, acc *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = acc.Clone()
	return nil
}

func (m *mockState) VaultAddress(name string) ([20]byte, error) {
	switch name {
	case habit.VaultDeposits:
		return [20]byte{0xdd}, nil
	case habit.VaultRewards:
		return [20]byte{0xee}, nil
	default:
		return [20]byte{}, errors.New("unknown vault")
	}
}

func (m *mockState) fundVault(amount int64) {
	acc := types.NewAccount()
	acc.SetBalance("USDT", big.NewInt(amount))
	m.accounts[[20]byte{0xee}] = acc
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	return acc.BalanceOf("USDT")
}

var (
	authority = [20]byte{0x0a}
	alice     = [20]byte{0x01}
	bob       = [20]byte{0x02}
)

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	state.config = &habit.Config{
		Authority:         authority,
		Treasury:          [20]byte{0x0b},
		Charity:           [20]byte{0x0c},
		Token:             "USDT",
		FeePercentage:     50,
		RewardPercentage:  30,
		CharityPercentage: 20,
		MinDeposit:        big.NewInt(5_000_000),
		MaxDeposit:        big.NewInt(10_000_000_000),
		TotalVolume:       big.NewInt(0),
	}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	return engine, state
}

func addRecord(state *mockState, participant [20]byte, ordinal byte, rateBps uint64, contribution int64) {
	state.finalizations[[32]byte{participant[0], ordinal}] = &habit.FinalizationRecord{
		Challenge:              [32]byte{participant[0], ordinal},
		Participant:            participant,
		CompletionRateBps:      rateBps,
		PenaltyAmount:          big.NewInt(contribution * 2),
		RewardPoolContribution: big.NewInt(contribution),
		Timestamp:              900_000,
	}
}

func TestEnsureState(t *testing.T) {
	engine, _ := newTestEngine(t)
	state, err := engine.EnsureState()
	if err != nil {
		t.Fatalf("ensure state: %v", err)
	}
	if state.NextEpochTime != 1_000_000+EpochPeriodSeconds {
		t.Fatalf("next epoch %d, want %d", state.NextEpochTime, 1_000_000+EpochPeriodSeconds)
	}
	// Repeated calls leave the existing singleton alone.
	engine.SetNowFunc(func() int64 { return 5_000_000 })
	again, err := engine.EnsureState()
	if err != nil {
		t.Fatalf("repeat ensure: %v", err)
	}
	if again.NextEpochTime != state.NextEpochTime {
		t.Fatalf("singleton was reseeded: %d", again.NextEpochTime)
	}
}

func TestDistributeGuards(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.Distribute(authority); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before EnsureState, got %v", err)
	}
	if _, err := engine.EnsureState(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := engine.Distribute(alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.Distribute(authority); !errors.Is(err, ErrEpochNotReady) {
		t.Fatalf("expected ErrEpochNotReady before the boundary, got %v", err)
	}
}

func TestDistributeSplitsPoolByScore(t *testing.T) {
	engine, state := newTestEngine(t)
	if _, err := engine.EnsureState(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Alice scores 8000 + 2*250 + 500 = 9000. Bob has no stats record and
	// scores the bare rate, 5000.
	addRecord(state, alice, 0, 8_000, 1_200_000)
	addRecord(state, bob, 0, 5_000, 800_000)
	state.stats[alice] = &habit.UserStats{User: alice, CurrentStreak: 2}
	state.fundVault(2_000_000)

	engine.SetNowFunc(func() int64 { return 1_000_000 + EpochPeriodSeconds })
	distribution, err := engine.Distribute(authority)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(distribution.Shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(distribution.Shares))
	}
	total := new(big.Int).Add(distribution.TotalAssigned, distribution.Dust)
	if total.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("assigned + dust != pool: %s", total)
	}

	aliceClaim, _ := engine.Claimable(alice)
	bobClaim, _ := engine.Claimable(bob)
	if aliceClaim.Cmp(bobClaim) <= 0 {
		t.Fatalf("higher score must claim more: alice %s, bob %s", aliceClaim, bobClaim)
	}
	sum := new(big.Int).Add(aliceClaim, bobClaim)
	if sum.Cmp(distribution.TotalAssigned) != 0 {
		t.Fatalf("claimable sum %s != assigned %s", sum, distribution.TotalAssigned)
	}

	// Consumed records must not feed a second epoch.
	for _, record := range state.finalizations {
		if !record.Rewarded {
			t.Fatalf("record %x not marked rewarded", record.Challenge)
		}
	}

	rewardState, err := engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if rewardState.LastEpochProcessed != 1 {
		t.Fatalf("epoch %d, want 1", rewardState.LastEpochProcessed)
	}
	if rewardState.TotalDistributed.Cmp(distribution.TotalAssigned) != 0 {
		t.Fatalf("total distributed mismatch")
	}
}

func TestDistributeEmptyEpochStillAdvances(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.EnsureState(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	engine.SetNowFunc(func() int64 { return 1_000_000 + EpochPeriodSeconds })
	distribution, err := engine.Distribute(authority)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if distribution.TotalAssigned.Sign() != 0 {
		t.Fatalf("empty epoch must assign nothing")
	}
	rewardState, _ := engine.State()
	if rewardState.LastEpochProcessed != 1 {
		t.Fatalf("epoch must advance even when empty, got %d", rewardState.LastEpochProcessed)
	}
	if rewardState.NextEpochTime != 1_000_000+2*EpochPeriodSeconds {
		t.Fatalf("next boundary %d, want %d", rewardState.NextEpochTime, 1_000_000+2*EpochPeriodSeconds)
	}
}

func TestUnclaimedBalanceSurvivesNextEpoch(t *testing.T) {
	engine, state := newTestEngine(t)
	if _, err := engine.EnsureState(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Epoch 1: alice earns the whole pool but defers her claim.
	addRecord(state, alice, 0, 5_000, 1_000_000)
	state.fundVault(1_000_000)
	engine.SetNowFunc(func() int64 { return 1_000_000 + EpochPeriodSeconds })
	if _, err := engine.Distribute(authority); err != nil {
		t.Fatalf("first distribute: %v", err)
	}
	aliceClaim, _ := engine.Claimable(alice)
	if aliceClaim.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("alice claimable %s, want 1000000", aliceClaim)
	}

	// New contributions arrive before epoch 2; alice's credited balance is
	// still sitting in the vault and must not be split again.
	addRecord(state, bob, 0, 5_000, 500_000)
	state.fundVault(1_500_000)
	engine.SetNowFunc(func() int64 { return 1_000_000 + 2*EpochPeriodSeconds })
	distribution, err := engine.Distribute(authority)
	if err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	if distribution.TotalAssigned.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("second epoch assigned %s, want only the new 500000", distribution.TotalAssigned)
	}

	aliceClaim, _ = engine.Claimable(alice)
	bobClaim, _ := engine.Claimable(bob)
	liabilities := new(big.Int).Add(aliceClaim, bobClaim)
	if liabilities.Cmp(state.balance([20]byte{0xee})) > 0 {
		t.Fatalf("claimable sum %s exceeds vault %s", liabilities, state.balance([20]byte{0xee}))
	}

	// Both claims must pay out in full, in either order.
	got, err := engine.Claim(alice)
	if err != nil {
		t.Fatalf("alice claim: %v", err)
	}
	if got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("alice claimed %s, want 1000000", got)
	}
	got, err = engine.Claim(bob)
	if err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if got.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("bob claimed %s, want 500000", got)
	}
	if state.balance([20]byte{0xee}).Sign() != 0 {
		t.Fatalf("vault not drained after both claims: %s", state.balance([20]byte{0xee}))
	}

	rewardState, err := engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if rewardState.OutstandingClaims.Sign() != 0 {
		t.Fatalf("outstanding %s after all claims, want 0", rewardState.OutstandingClaims)
	}
}

func TestClaim(t *testing.T) {
	engine, state := newTestEngine(t)
	if _, err := engine.Claim(alice); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}

	state.claimable[alice] = big.NewInt(750_000)
	state.fundVault(1_000_000)

	amount, err := engine.Claim(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount.Cmp(big.NewInt(750_000)) != 0 {
		t.Fatalf("claimed %s, want 750000", amount)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(750_000)) != 0 {
		t.Fatalf("alice balance %s, want 750000", got)
	}
	if got := state.balance([20]byte{0xee}); got.Cmp(big.NewInt(250_000)) != 0 {
		t.Fatalf("vault balance %s, want 250000", got)
	}

	stats, ok := state.stats[alice]
	if !ok || stats.TotalRewardsClaimed.Cmp(big.NewInt(750_000)) != 0 {
		t.Fatalf("claimed total not tracked: %+v", stats)
	}

	if _, err := engine.Claim(alice); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("second claim must fail, got %v", err)
	}
}
