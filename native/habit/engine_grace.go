package habit

// UseGracePeriod extends an active challenge's deadline by the fixed grace
// window. Only the participant may invoke it, at most MaxGracePeriods times.
// Each use appends an audit record keyed by the pre-increment counter so
// every use lands on a distinct, previously vacant address.
func (e *Engine) UseGracePeriod(id [32]byte, caller [20]byte, reason string) (*GracePeriodRecord, error) {
	challenge, err := e.loadChallenge(id)
	if err != nil {
		return nil, err
	}
	if caller != challenge.Participant {
		return nil, ErrUnauthorizedParticipant
	}
	return e.applyGracePeriod(challenge, reason)
}

// ExtendGracePeriod is the admin variant of UseGracePeriod: the protocol
// authority may extend any active challenge under the same allowance and
// record-keying discipline, for exceptional manual intervention.
func (e *Engine) ExtendGracePeriod(id [32]byte, caller [20]byte, reason string) (*GracePeriodRecord, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Authority {
		return nil, ErrUnauthorized
	}
	challenge, err := e.loadChallenge(id)
	if err != nil {
		return nil, err
	}
	return e.applyGracePeriod(challenge, reason)
}

func (e *Engine) applyGracePeriod(challenge *Challenge, reason string) (*GracePeriodRecord, error) {
	now := e.now()
	if challenge.Status != ChallengeActive {
		return nil, ErrChallengeNotActive
	}
	if now >= challenge.EndTime {
		return nil, ErrChallengeExpired
	}
	if challenge.GracePeriodsUsed >= challenge.MaxGracePeriods {
		return nil, ErrNoGracePeriodsLeft
	}
	newEnd, err := checkedAddSeconds(challenge.EndTime, GraceExtensionSeconds)
	if err != nil {
		return nil, err
	}
	ordinal := challenge.GracePeriodsUsed
	recordID := GraceAddress(challenge.ID, ordinal)
	if _, occupied := e.state.GraceRecordGet(recordID); occupied {
		return nil, ErrGraceRecordExists
	}

	challenge.EndTime = newEnd
	challenge.GracePeriodsUsed++
	record := &GracePeriodRecord{
		ID:         recordID,
		Challenge:  challenge.ID,
		Ordinal:    ordinal,
		Reason:     reason,
		UsedAt:     now,
		NewEndTime: newEnd,
	}
	if err := e.state.GraceRecordPut(record); err != nil {
		return nil, err
	}
	if err := e.state.ChallengePut(challenge); err != nil {
		return nil, err
	}
	e.emit(NewGracePeriodUsedEvent(challenge, record))
	return record.Clone(), nil
}
