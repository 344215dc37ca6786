package habit

import "math/big"

// CreateChallenge validates the creation parameters against the protocol
// config, pulls the deposit into the deposits vault and persists a new Active
// challenge. The challenge address derives from the participant and the
// global challenge counter, so a replayed creation collides with the occupied
// address instead of creating a duplicate.
func (e *Engine) CreateChallenge(participant [20]byte, deposit *big.Int, totalSessions, durationDays uint32, verifier *[20]byte, challengeType ChallengeType) (*Challenge, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrProtocolPaused
	}
	amount := cloneBigInt(deposit)
	if amount.Cmp(cfg.MinDeposit) < 0 {
		return nil, ErrDepositTooSmall
	}
	if amount.Cmp(cfg.MaxDeposit) > 0 {
		return nil, ErrDepositTooLarge
	}
	if totalSessions < MinTotalSessions || totalSessions > MaxTotalSessions {
		return nil, ErrInvalidSessionCount
	}
	if durationDays < MinDurationDays || durationDays > MaxDurationDays {
		return nil, ErrInvalidDuration
	}
	if !challengeType.Valid() {
		return nil, ErrInvalidChallengeType
	}
	now := e.now()
	endTime, err := checkedAddSeconds(now, int64(durationDays)*secondsPerDay)
	if err != nil {
		return nil, err
	}
	ordinal := cfg.TotalChallenges
	id := ChallengeAddress(participant, ordinal)
	if _, exists := e.state.ChallengeGet(id); exists {
		return nil, ErrChallengeExists
	}

	vault, err := e.state.VaultAddress(VaultDeposits)
	if err != nil {
		return nil, err
	}
	if err := e.transferToken(participant, vault, cfg.Token, amount); err != nil {
		return nil, err
	}

	challenge := &Challenge{
		ID:                   id,
		Participant:          participant,
		DepositAmount:        amount,
		TotalSessions:        totalSessions,
		StartTime:            now,
		EndTime:              endTime,
		Status:               ChallengeActive,
		Ordinal:              ordinal,
		Type:                 challengeType,
		MinimumIntervalHours: MinimumInterval(totalSessions, durationDays),
		MaxGracePeriods:      DefaultMaxGracePeriods,
	}
	if verifier != nil {
		v := *verifier
		challenge.Verifier = &v
	}
	if err := e.state.ChallengePut(challenge); err != nil {
		return nil, err
	}

	stats := e.loadOrCreateStats(participant)
	stats.TotalChallenges++
	stats.TotalDeposited = new(big.Int).Add(stats.TotalDeposited, amount)
	stats.LastActivity = now
	if err := e.state.UserStatsPut(stats); err != nil {
		return nil, err
	}

	cfg.TotalChallenges++
	cfg.TotalVolume = new(big.Int).Add(cfg.TotalVolume, amount)
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, err
	}

	e.emit(NewChallengeCreatedEvent(challenge))
	return challenge.Clone(), nil
}
