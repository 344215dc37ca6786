package state

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"habitvault/core/types"
	"habitvault/native/habit"
	"habitvault/native/rewards"
	"habitvault/storage"
)

// Manager persists every protocol record in a key-value store. Record
// addresses come from the deterministic derivation functions of the habit and
// rewards packages, so the manager never generates identifiers of its own.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager backed by the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) put(key [32]byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key[:], encoded)
}

func (m *Manager) get(key [32]byte, out interface{}) bool {
	data, err := m.db.Get(key[:])
	if err != nil || len(data) == 0 {
		return false
	}
	return rlp.DecodeBytes(data, out) == nil
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

func bytesBig(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(b)
}

// --- Config ---

type storedConfig struct {
	Authority         []byte
	Treasury          []byte
	Charity           []byte
	Token             string
	FeePercentage     uint8
	RewardPercentage  uint8
	CharityPercentage uint8
	MinDeposit        []byte
	MaxDeposit        []byte
	Paused            bool
	TotalChallenges   uint64
	TotalVolume       []byte
}

func (m *Manager) ConfigGet() (*habit.Config, bool) {
	var stored storedConfig
	if !m.get(habit.ConfigAddress(), &stored) {
		return nil, false
	}
	cfg := &habit.Config{
		Token:             stored.Token,
		FeePercentage:     stored.FeePercentage,
		RewardPercentage:  stored.RewardPercentage,
		CharityPercentage: stored.CharityPercentage,
		MinDeposit:        bytesBig(stored.MinDeposit),
		MaxDeposit:        bytesBig(stored.MaxDeposit),
		Paused:            stored.Paused,
		TotalChallenges:   stored.TotalChallenges,
		TotalVolume:       bytesBig(stored.TotalVolume),
	}
	copy(cfg.Authority[:], stored.Authority)
	copy(cfg.Treasury[:], stored.Treasury)
	copy(cfg.Charity[:], stored.Charity)
	return cfg, true
}

func (m *Manager) ConfigPut(cfg *habit.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil config")
	}
	return m.put(habit.ConfigAddress(), storedConfig{
		Authority:         append([]byte(nil), cfg.Authority[:]...),
		Treasury:          append([]byte(nil), cfg.Treasury[:]...),
		Charity:           append([]byte(nil), cfg.Charity[:]...),
		Token:             cfg.Token,
		FeePercentage:     cfg.FeePercentage,
		RewardPercentage:  cfg.RewardPercentage,
		CharityPercentage: cfg.CharityPercentage,
		MinDeposit:        bigBytes(cfg.MinDeposit),
		MaxDeposit:        bigBytes(cfg.MaxDeposit),
		Paused:            cfg.Paused,
		TotalChallenges:   cfg.TotalChallenges,
		TotalVolume:       bigBytes(cfg.TotalVolume),
	})
}

// --- Challenge ---

type storedChallenge struct {
	ID                   []byte
	Participant          []byte
	DepositAmount        []byte
	TotalSessions        uint32
	CompletedSessions    uint32
	StartTime            uint64
	EndTime              uint64
	LastSessionTime      uint64
	Status               uint8
	HasVerifier          bool
	Verifier             []byte
	Ordinal              uint64
	ChallengeType        uint8
	MinimumIntervalHours uint16
	GracePeriodsUsed     uint8
	MaxGracePeriods      uint8
}

func (m *Manager) ChallengeGet(id [32]byte) (*habit.Challenge, bool) {
	var stored storedChallenge
	if !m.get(id, &stored) {
		return nil, false
	}
	challenge := &habit.Challenge{
		DepositAmount:        bytesBig(stored.DepositAmount),
		TotalSessions:        stored.TotalSessions,
		CompletedSessions:    stored.CompletedSessions,
		StartTime:            int64(stored.StartTime),
		EndTime:              int64(stored.EndTime),
		LastSessionTime:      int64(stored.LastSessionTime),
		Status:               habit.ChallengeStatus(stored.Status),
		Ordinal:              stored.Ordinal,
		Type:                 habit.ChallengeType(stored.ChallengeType),
		MinimumIntervalHours: stored.MinimumIntervalHours,
		GracePeriodsUsed:     stored.GracePeriodsUsed,
		MaxGracePeriods:      stored.MaxGracePeriods,
	}
	copy(challenge.ID[:], stored.ID)
	copy(challenge.Participant[:], stored.Participant)
	if stored.HasVerifier {
		var verifier [20]byte
		copy(verifier[:], stored.Verifier)
		challenge.Verifier = &verifier
	}
	return challenge, true
}

func (m *Manager) ChallengePut(c *habit.Challenge) error {
	if c == nil {
		return fmt.Errorf("state: nil challenge")
	}
	stored := storedChallenge{
		ID:                   append([]byte(nil), c.ID[:]...),
		Participant:          append([]byte(nil), c.Participant[:]...),
		DepositAmount:        bigBytes(c.DepositAmount),
		TotalSessions:        c.TotalSessions,
		CompletedSessions:    c.CompletedSessions,
		StartTime:            uint64(c.StartTime),
		EndTime:              uint64(c.EndTime),
		LastSessionTime:      uint64(c.LastSessionTime),
		Status:               uint8(c.Status),
		Ordinal:              c.Ordinal,
		ChallengeType:        uint8(c.Type),
		MinimumIntervalHours: c.MinimumIntervalHours,
		GracePeriodsUsed:     c.GracePeriodsUsed,
		MaxGracePeriods:      c.MaxGracePeriods,
	}
	if c.Verifier != nil {
		stored.HasVerifier = true
		stored.Verifier = append([]byte(nil), c.Verifier[:]...)
	}
	return m.put(c.ID, stored)
}

// --- Session ---

type storedSession struct {
	ID              []byte
	Challenge       []byte
	SessionNumber   uint32
	Timestamp       uint64
	ProofHash       string
	VerifiedBy      []byte
	DurationMinutes uint16
	Location        string
	Notes           string
	AutoVerified    bool
}

func (m *Manager) SessionGet(id [32]byte) (*habit.Session, bool) {
	var stored storedSession
	if !m.get(id, &stored) {
		return nil, false
	}
	session := &habit.Session{
		SessionNumber: stored.SessionNumber,
		Timestamp:     int64(stored.Timestamp),
		ProofHash:     stored.ProofHash,
		Metadata: habit.SessionMetadata{
			DurationMinutes: stored.DurationMinutes,
			Location:        stored.Location,
			Notes:           stored.Notes,
		},
		AutoVerified: stored.AutoVerified,
	}
	copy(session.ID[:], stored.ID)
	copy(session.Challenge[:], stored.Challenge)
	copy(session.VerifiedBy[:], stored.VerifiedBy)
	return session, true
}

func (m *Manager) SessionPut(s *habit.Session) error {
	if s == nil {
		return fmt.Errorf("state: nil session")
	}
	return m.put(s.ID, storedSession{
		ID:              append([]byte(nil), s.ID[:]...),
		Challenge:       append([]byte(nil), s.Challenge[:]...),
		SessionNumber:   s.SessionNumber,
		Timestamp:       uint64(s.Timestamp),
		ProofHash:       s.ProofHash,
		VerifiedBy:      append([]byte(nil), s.VerifiedBy[:]...),
		DurationMinutes: s.Metadata.DurationMinutes,
		Location:        s.Metadata.Location,
		Notes:           s.Metadata.Notes,
		AutoVerified:    s.AutoVerified,
	})
}

// --- Grace period records ---

type storedGraceRecord struct {
	ID         []byte
	Challenge  []byte
	Ordinal    uint8
	Reason     string
	UsedAt     uint64
	NewEndTime uint64
}

func (m *Manager) GraceRecordGet(id [32]byte) (*habit.GracePeriodRecord, bool) {
	var stored storedGraceRecord
	if !m.get(id, &stored) {
		return nil, false
	}
	record := &habit.GracePeriodRecord{
		Ordinal:    stored.Ordinal,
		Reason:     stored.Reason,
		UsedAt:     int64(stored.UsedAt),
		NewEndTime: int64(stored.NewEndTime),
	}
	copy(record.ID[:], stored.ID)
	copy(record.Challenge[:], stored.Challenge)
	return record, true
}

func (m *Manager) GraceRecordPut(record *habit.GracePeriodRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil grace record")
	}
	return m.put(record.ID, storedGraceRecord{
		ID:         append([]byte(nil), record.ID[:]...),
		Challenge:  append([]byte(nil), record.Challenge[:]...),
		Ordinal:    record.Ordinal,
		Reason:     record.Reason,
		UsedAt:     uint64(record.UsedAt),
		NewEndTime: uint64(record.NewEndTime),
	})
}

// --- Finalization records + pending index ---

type storedFinalization struct {
	Challenge              []byte
	Participant            []byte
	CompletionRateBps      uint64
	PenaltyAmount          []byte
	RewardPoolContribution []byte
	Timestamp              uint64
	Rewarded               bool
}

func (m *Manager) FinalizationGet(id [32]byte) (*habit.FinalizationRecord, bool) {
	var stored storedFinalization
	if !m.get(id, &stored) {
		return nil, false
	}
	record := &habit.FinalizationRecord{
		CompletionRateBps:      stored.CompletionRateBps,
		PenaltyAmount:          bytesBig(stored.PenaltyAmount),
		RewardPoolContribution: bytesBig(stored.RewardPoolContribution),
		Timestamp:              int64(stored.Timestamp),
		Rewarded:               stored.Rewarded,
	}
	copy(record.Challenge[:], stored.Challenge)
	copy(record.Participant[:], stored.Participant)
	return record, true
}

// FinalizationPut persists the record and keeps the pending index in sync:
// unrewarded records with a positive reward-pool contribution are indexed,
// everything else is removed.
func (m *Manager) FinalizationPut(record *habit.FinalizationRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil finalization record")
	}
	id := habit.FinalizationAddress(record.Challenge)
	if err := m.put(id, storedFinalization{
		Challenge:              append([]byte(nil), record.Challenge[:]...),
		Participant:            append([]byte(nil), record.Participant[:]...),
		CompletionRateBps:      record.CompletionRateBps,
		PenaltyAmount:          bigBytes(record.PenaltyAmount),
		RewardPoolContribution: bigBytes(record.RewardPoolContribution),
		Timestamp:              uint64(record.Timestamp),
		Rewarded:               record.Rewarded,
	}); err != nil {
		return err
	}
	pending := !record.Rewarded && record.RewardPoolContribution != nil && record.RewardPoolContribution.Sign() > 0
	return m.updatePendingIndex(record.Challenge, pending)
}

func (m *Manager) loadPendingIndex() [][]byte {
	data, err := m.db.Get(pendingIndexKey)
	if err != nil || len(data) == 0 {
		return nil
	}
	var index [][]byte
	if rlp.DecodeBytes(data, &index) != nil {
		return nil
	}
	return index
}

func (m *Manager) savePendingIndex(index [][]byte) error {
	encoded, err := rlp.EncodeToBytes(index)
	if err != nil {
		return err
	}
	return m.db.Put(pendingIndexKey, encoded)
}

func (m *Manager) updatePendingIndex(challenge [32]byte, pending bool) error {
	index := m.loadPendingIndex()
	pos := -1
	for i, entry := range index {
		if string(entry) == string(challenge[:]) {
			pos = i
			break
		}
	}
	switch {
	case pending && pos < 0:
		index = append(index, append([]byte(nil), challenge[:]...))
	case !pending && pos >= 0:
		index = append(index[:pos], index[pos+1:]...)
	default:
		return nil
	}
	return m.savePendingIndex(index)
}

// PendingFinalizations returns every unrewarded finalization record carrying
// a positive reward-pool contribution, in deterministic order.
func (m *Manager) PendingFinalizations() ([]*habit.FinalizationRecord, error) {
	index := m.loadPendingIndex()
	sort.Slice(index, func(i, j int) bool { return string(index[i]) < string(index[j]) })
	records := make([]*habit.FinalizationRecord, 0, len(index))
	for _, entry := range index {
		var challenge [32]byte
		copy(challenge[:], entry)
		record, ok := m.FinalizationGet(habit.FinalizationAddress(challenge))
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// --- User stats ---

type storedUserStats struct {
	User                   []byte
	TotalChallenges        uint32
	ChallengesCompleted    uint32
	ChallengesPartial      uint32
	ChallengesFailed       uint32
	PerfectCompletions     uint32
	TotalSessionsCompleted uint32
	TotalDeposited         []byte
	TotalRefunded          []byte
	TotalPenalties         []byte
	TotalRewardsClaimed    []byte
	CurrentStreak          uint32
	BestStreak             uint32
	LastActivity           uint64
}

func (m *Manager) UserStatsGet(addr [20]byte) (*habit.UserStats, bool) {
	var stored storedUserStats
	if !m.get(habit.UserStatsAddress(addr), &stored) {
		return nil, false
	}
	stats := &habit.UserStats{
		TotalChallenges:        stored.TotalChallenges,
		ChallengesCompleted:    stored.ChallengesCompleted,
		ChallengesPartial:      stored.ChallengesPartial,
		ChallengesFailed:       stored.ChallengesFailed,
		PerfectCompletions:     stored.PerfectCompletions,
		TotalSessionsCompleted: stored.TotalSessionsCompleted,
		TotalDeposited:         bytesBig(stored.TotalDeposited),
		TotalRefunded:          bytesBig(stored.TotalRefunded),
		TotalPenalties:         bytesBig(stored.TotalPenalties),
		TotalRewardsClaimed:    bytesBig(stored.TotalRewardsClaimed),
		CurrentStreak:          stored.CurrentStreak,
		BestStreak:             stored.BestStreak,
		LastActivity:           int64(stored.LastActivity),
	}
	copy(stats.User[:], stored.User)
	return stats, true
}

func (m *Manager) UserStatsPut(stats *habit.UserStats) error {
	if stats == nil {
		return fmt.Errorf("state: nil user stats")
	}
	stats.Normalize()
	return m.put(habit.UserStatsAddress(stats.User), storedUserStats{
		User:                   append([]byte(nil), stats.User[:]...),
		TotalChallenges:        stats.TotalChallenges,
		ChallengesCompleted:    stats.ChallengesCompleted,
		ChallengesPartial:      stats.ChallengesPartial,
		ChallengesFailed:       stats.ChallengesFailed,
		PerfectCompletions:     stats.PerfectCompletions,
		TotalSessionsCompleted: stats.TotalSessionsCompleted,
		TotalDeposited:         bigBytes(stats.TotalDeposited),
		TotalRefunded:          bigBytes(stats.TotalRefunded),
		TotalPenalties:         bigBytes(stats.TotalPenalties),
		TotalRewardsClaimed:    bigBytes(stats.TotalRewardsClaimed),
		CurrentStreak:          stats.CurrentStreak,
		BestStreak:             stats.BestStreak,
		LastActivity:           uint64(stats.LastActivity),
	})
}

// --- Reward state + claimable balances ---

type storedRewardState struct {
	LastEpochProcessed uint64
	NextEpochTime      uint64
	TotalDistributed   []byte
	OutstandingClaims  []byte
}

func (m *Manager) RewardStateGet() (*rewards.RewardState, bool) {
	var stored storedRewardState
	if !m.get(rewards.StateAddress(), &stored) {
		return nil, false
	}
	return &rewards.RewardState{
		LastEpochProcessed: stored.LastEpochProcessed,
		NextEpochTime:      int64(stored.NextEpochTime),
		TotalDistributed:   bytesBig(stored.TotalDistributed),
		OutstandingClaims:  bytesBig(stored.OutstandingClaims),
	}, true
}

func (m *Manager) RewardStatePut(state *rewards.RewardState) error {
	if state == nil {
		return fmt.Errorf("state: nil reward state")
	}
	return m.put(rewards.StateAddress(), storedRewardState{
		LastEpochProcessed: state.LastEpochProcessed,
		NextEpochTime:      uint64(state.NextEpochTime),
		TotalDistributed:   bigBytes(state.TotalDistributed),
		OutstandingClaims:  bigBytes(state.OutstandingClaims),
	})
}

func (m *Manager) ClaimableGet(addr [20]byte) (*big.Int, error) {
	key := rewards.ClaimableAddress(addr)
	data, err := m.db.Get(key[:])
	if err != nil || len(data) == 0 {
		return big.NewInt(0), nil
	}
	var stored []byte
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return bytesBig(stored), nil
}

func (m *Manager) ClaimablePut(addr [20]byte, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(bigBytes(amount))
	if err != nil {
		return err
	}
	key := rewards.ClaimableAddress(addr)
	return m.db.Put(key[:], encoded)
}

// --- Custody accounts ---

type storedBalance struct {
	Token  string
	Amount []byte
}

type storedAccount struct {
	Nonce    uint64
	Balances []storedBalance
}

func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, err := m.db.Get(accountKey(addr))
	if err != nil || len(data) == 0 {
		return types.NewAccount(), nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	account := types.NewAccount()
	account.Nonce = stored.Nonce
	for _, balance := range stored.Balances {
		account.SetBalance(balance.Token, bytesBig(balance.Amount))
	}
	return account, nil
}

func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		account = types.NewAccount()
	}
	stored := storedAccount{Nonce: account.Nonce}
	tokens := make([]string, 0, len(account.Balances))
	for token := range account.Balances {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		stored.Balances = append(stored.Balances, storedBalance{
			Token:  token,
			Amount: bigBytes(account.Balances[token]),
		})
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// VaultAddress returns the stable custody address for a named protocol vault.
func (m *Manager) VaultAddress(name string) ([20]byte, error) {
	switch name {
	case habit.VaultDeposits, habit.VaultRewards:
		return vaultAddress(name), nil
	default:
		return [20]byte{}, fmt.Errorf("state: unknown vault %q", name)
	}
}

// Mint credits a custody account out of thin air. It backs protocol bootstrap
// and test fixtures; the engines themselves only ever move existing balance.
func (m *Manager) Mint(addr [20]byte, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: mint amount must be non-negative")
	}
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account.SetBalance(token, new(big.Int).Add(account.BalanceOf(token), amount))
	return m.PutAccount(addr[:], account)
}

// BalanceOf reports a custody account's balance for the supplied token.
func (m *Manager) BalanceOf(addr [20]byte, token string) (*big.Int, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return account.BalanceOf(token), nil
}
