package habit

// MarkSessionComplete records one attested session against an active
// challenge. Only the assigned verifier may sign, and never the participant,
// regardless of which identity the verifier field holds. The session address
// derives from the next ordinal, so replaying a completed attestation hits an
// occupied address and fails with ErrSessionExists rather than double
// counting.
func (e *Engine) MarkSessionComplete(id [32]byte, signer [20]byte, proofHash string, metadata SessionMetadata) (*Session, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrProtocolPaused
	}
	challenge, err := e.loadChallenge(id)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if challenge.Status != ChallengeActive {
		return nil, ErrChallengeNotActive
	}
	if now >= challenge.EndTime {
		return nil, ErrChallengeExpired
	}
	if challenge.CompletedSessions >= challenge.TotalSessions {
		return nil, ErrAllSessionsComplete
	}
	if challenge.Verifier == nil {
		return nil, ErrNoVerifier
	}
	if signer == challenge.Participant {
		return nil, ErrSelfVerification
	}
	if signer != *challenge.Verifier {
		return nil, ErrUnauthorizedVerifier
	}
	if err := ValidateProofHash(proofHash); err != nil {
		return nil, err
	}
	if err := ValidateMetadata(challenge.Type, metadata); err != nil {
		return nil, err
	}
	// The first session is spaced from the challenge start, every later one
	// from its predecessor.
	last := challenge.LastSessionTime
	if last == 0 {
		last = challenge.StartTime
	}
	if (now-last)/secondsPerHour < int64(challenge.MinimumIntervalHours) {
		return nil, ErrSessionTooSoon
	}

	ordinal := challenge.CompletedSessions + 1
	sessionID := SessionAddress(id, ordinal)
	if _, occupied := e.state.SessionGet(sessionID); occupied {
		return nil, ErrSessionExists
	}

	session := &Session{
		ID:            sessionID,
		Challenge:     id,
		SessionNumber: ordinal,
		Timestamp:     now,
		ProofHash:     proofHash,
		VerifiedBy:    signer,
		Metadata:      metadata,
		AutoVerified:  false,
	}
	if err := e.state.SessionPut(session); err != nil {
		return nil, err
	}

	challenge.CompletedSessions = ordinal
	challenge.LastSessionTime = now
	if err := e.state.ChallengePut(challenge); err != nil {
		return nil, err
	}

	stats := e.loadOrCreateStats(challenge.Participant)
	stats.TotalSessionsCompleted++
	stats.LastActivity = now
	if err := e.state.UserStatsPut(stats); err != nil {
		return nil, err
	}

	e.emit(NewSessionCompletedEvent(session))
	return session.Clone(), nil
}
