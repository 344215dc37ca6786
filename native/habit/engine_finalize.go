package habit

import "math/big"

// FinalizeChallenge settles an active challenge once its window has elapsed
// or every session is complete. It computes the proportional refund, splits
// the forfeited remainder between the protocol fee, the reward pool and the
// charity destination, writes the exactly-once finalization record and moves
// the challenge into its terminal status. Callable by the participant or the
// protocol authority.
func (e *Engine) FinalizeChallenge(id [32]byte, caller [20]byte) (*FinalizationRecord, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	challenge, err := e.loadChallenge(id)
	if err != nil {
		return nil, err
	}
	if caller != challenge.Participant && caller != cfg.Authority {
		return nil, ErrUnauthorized
	}
	recordID := FinalizationAddress(id)
	if _, occupied := e.state.FinalizationGet(recordID); occupied {
		return nil, ErrAlreadyFinalized
	}
	if challenge.Status != ChallengeActive {
		return nil, ErrChallengeNotActive
	}
	now := e.now()
	if now < challenge.EndTime && challenge.CompletedSessions < challenge.TotalSessions {
		return nil, ErrCannotFinalizeYet
	}

	rateBps := uint64(challenge.CompletedSessions) * CompletionRateDenominator / uint64(challenge.TotalSessions)
	status := classifyCompletion(rateBps)

	deposit := cloneBigInt(challenge.DepositAmount)
	refund := new(big.Int).Mul(deposit, new(big.Int).SetUint64(rateBps))
	refund.Div(refund, big.NewInt(CompletionRateDenominator))
	penalty := new(big.Int).Sub(deposit, refund)

	// Fee and charity shares truncate; the remainder stays with the reward
	// pool so no value is burnt.
	fee := percentageShare(penalty, cfg.FeePercentage)
	charity := percentageShare(penalty, cfg.CharityPercentage)
	reward := new(big.Int).Sub(penalty, fee)
	reward.Sub(reward, charity)

	vault, err := e.state.VaultAddress(VaultDeposits)
	if err != nil {
		return nil, err
	}
	rewardsVault, err := e.state.VaultAddress(VaultRewards)
	if err != nil {
		return nil, err
	}
	if err := e.transferToken(vault, challenge.Participant, cfg.Token, refund); err != nil {
		return nil, err
	}
	if err := e.transferToken(vault, cfg.Treasury, cfg.Token, fee); err != nil {
		return nil, err
	}
	if err := e.transferToken(vault, cfg.Charity, cfg.Token, charity); err != nil {
		return nil, err
	}
	if err := e.transferToken(vault, rewardsVault, cfg.Token, reward); err != nil {
		return nil, err
	}

	record := &FinalizationRecord{
		Challenge:              id,
		Participant:            challenge.Participant,
		CompletionRateBps:      rateBps,
		PenaltyAmount:          penalty,
		RewardPoolContribution: reward,
		Timestamp:              now,
	}
	if err := e.state.FinalizationPut(record); err != nil {
		return nil, err
	}

	stats := e.loadOrCreateStats(challenge.Participant)
	switch status {
	case ChallengeCompleted:
		stats.ChallengesCompleted++
		stats.PerfectCompletions++
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.BestStreak {
			stats.BestStreak = stats.CurrentStreak
		}
	case ChallengePartiallyCompleted:
		// The streak survives a partial completion untouched.
		stats.ChallengesPartial++
	case ChallengeFailed:
		stats.ChallengesFailed++
		stats.CurrentStreak = 0
	}
	stats.TotalRefunded = new(big.Int).Add(stats.TotalRefunded, refund)
	stats.TotalPenalties = new(big.Int).Add(stats.TotalPenalties, penalty)
	stats.LastActivity = now
	if err := e.state.UserStatsPut(stats); err != nil {
		return nil, err
	}

	challenge.Status = status
	if err := e.state.ChallengePut(challenge); err != nil {
		return nil, err
	}

	e.emit(NewChallengeFinalizedEvent(challenge, record, refund))
	return record.Clone(), nil
}

func classifyCompletion(rateBps uint64) ChallengeStatus {
	switch {
	case rateBps >= CompletionRateDenominator:
		return ChallengeCompleted
	case rateBps >= PartialCompletionThresholdBps:
		return ChallengePartiallyCompleted
	default:
		return ChallengeFailed
	}
}

func percentageShare(total *big.Int, pct uint8) *big.Int {
	share := new(big.Int).Mul(cloneBigInt(total), new(big.Int).SetUint64(uint64(pct)))
	return share.Div(share, big.NewInt(100))
}
