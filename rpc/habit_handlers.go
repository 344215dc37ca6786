package rpc

import (
	"encoding/json"

	"habitvault/native/habit"
)

type configResult struct {
	Authority         string `json:"authority"`
	Treasury          string `json:"treasury"`
	Charity           string `json:"charity"`
	Token             string `json:"token"`
	FeePercentage     uint8  `json:"feePercentage"`
	RewardPercentage  uint8  `json:"rewardPercentage"`
	CharityPercentage uint8  `json:"charityPercentage"`
	MinDeposit        string `json:"minDeposit"`
	MaxDeposit        string `json:"maxDeposit"`
	Paused            bool   `json:"paused"`
	TotalChallenges   uint64 `json:"totalChallenges"`
	TotalVolume       string `json:"totalVolume"`
}

func newConfigResult(cfg *habit.Config) *configResult {
	return &configResult{
		Authority:         hexAddress(cfg.Authority),
		Treasury:          hexAddress(cfg.Treasury),
		Charity:           hexAddress(cfg.Charity),
		Token:             cfg.Token,
		FeePercentage:     cfg.FeePercentage,
		RewardPercentage:  cfg.RewardPercentage,
		CharityPercentage: cfg.CharityPercentage,
		MinDeposit:        amountString(cfg.MinDeposit),
		MaxDeposit:        amountString(cfg.MaxDeposit),
		Paused:            cfg.Paused,
		TotalChallenges:   cfg.TotalChallenges,
		TotalVolume:       amountString(cfg.TotalVolume),
	}
}

type challengeResult struct {
	ID                   string  `json:"id"`
	Participant          string  `json:"participant"`
	DepositAmount        string  `json:"depositAmount"`
	TotalSessions        uint32  `json:"totalSessions"`
	CompletedSessions    uint32  `json:"completedSessions"`
	StartTime            int64   `json:"startTime"`
	EndTime              int64   `json:"endTime"`
	LastSessionTime      int64   `json:"lastSessionTime"`
	Status               string  `json:"status"`
	Verifier             *string `json:"verifier,omitempty"`
	Ordinal              uint64  `json:"ordinal"`
	ChallengeType        string  `json:"challengeType"`
	MinimumIntervalHours uint16  `json:"minimumIntervalHours"`
	GracePeriodsUsed     uint8   `json:"gracePeriodsUsed"`
	MaxGracePeriods      uint8   `json:"maxGracePeriods"`
}

func newChallengeResult(c *habit.Challenge) *challengeResult {
	result := &challengeResult{
		ID:                   hexHash(c.ID),
		Participant:          hexAddress(c.Participant),
		DepositAmount:        amountString(c.DepositAmount),
		TotalSessions:        c.TotalSessions,
		CompletedSessions:    c.CompletedSessions,
		StartTime:            c.StartTime,
		EndTime:              c.EndTime,
		LastSessionTime:      c.LastSessionTime,
		Status:               c.Status.String(),
		Ordinal:              c.Ordinal,
		ChallengeType:        c.Type.String(),
		MinimumIntervalHours: c.MinimumIntervalHours,
		GracePeriodsUsed:     c.GracePeriodsUsed,
		MaxGracePeriods:      c.MaxGracePeriods,
	}
	if c.Verifier != nil {
		verifier := hexAddress(*c.Verifier)
		result.Verifier = &verifier
	}
	return result
}

func (s *Server) habitInitialize(params []json.RawMessage) (interface{}, error) {
	var req struct {
		Authority         string `json:"authority"`
		Treasury          string `json:"treasury"`
		Charity           string `json:"charity"`
		Token             string `json:"token"`
		FeePercentage     uint8  `json:"feePercentage"`
		RewardPercentage  uint8  `json:"rewardPercentage"`
		CharityPercentage uint8  `json:"charityPercentage"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	authority, err := parseAddress("authority", req.Authority)
	if err != nil {
		return nil, err
	}
	treasury, err := parseAddress("treasury", req.Treasury)
	if err != nil {
		return nil, err
	}
	charity, err := parseAddress("charity", req.Charity)
	if err != nil {
		return nil, err
	}
	cfg, err := s.node.HabitEngine().Initialize(authority, treasury, charity, req.Token, req.FeePercentage, req.RewardPercentage, req.CharityPercentage)
	if s.metrics != nil {
		s.metrics.ObserveOp("initialize", err)
	}
	if err != nil {
		return nil, err
	}
	return newConfigResult(cfg), nil
}

func (s *Server) habitPause(params []json.RawMessage) (interface{}, error) {
	return s.pauseToggle(params, true)
}

func (s *Server) habitUnpause(params []json.RawMessage) (interface{}, error) {
	return s.pauseToggle(params, false)
}

func (s *Server) pauseToggle(params []json.RawMessage, pause bool) (interface{}, error) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	op := "unpause"
	if pause {
		op = "pause"
		err = s.node.HabitEngine().Pause(caller)
	} else {
		err = s.node.HabitEngine().Unpause(caller)
	}
	if s.metrics != nil {
		s.metrics.ObserveOp(op, err)
	}
	if err != nil {
		return nil, err
	}
	return map[string]bool{"paused": pause}, nil
}

func (s *Server) habitUpdateConfig(params []json.RawMessage) (interface{}, error) {
	var req struct {
		Caller            string  `json:"caller"`
		FeePercentage     *uint8  `json:"feePercentage"`
		RewardPercentage  *uint8  `json:"rewardPercentage"`
		CharityPercentage *uint8  `json:"charityPercentage"`
		MinDeposit        *string `json:"minDeposit"`
		MaxDeposit        *string `json:"maxDeposit"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	update := habit.ConfigUpdate{
		FeePercentage:     req.FeePercentage,
		RewardPercentage:  req.RewardPercentage,
		CharityPercentage: req.CharityPercentage,
	}
	if req.MinDeposit != nil {
		if update.MinDeposit, err = parseAmount("minDeposit", *req.MinDeposit); err != nil {
			return nil, err
		}
	}
	if req.MaxDeposit != nil {
		if update.MaxDeposit, err = parseAmount("maxDeposit", *req.MaxDeposit); err != nil {
			return nil, err
		}
	}
	cfg, err := s.node.HabitEngine().UpdateConfig(caller, update)
	if s.metrics != nil {
		s.metrics.ObserveOp("update_config", err)
	}
	if err != nil {
		return nil, err
	}
	return newConfigResult(cfg), nil
}

func (s *Server) habitCreateChallenge(params []json.RawMessage) (interface{}, error) {
	var req struct {
		Participant   string  `json:"participant"`
		DepositAmount string  `json:"depositAmount"`
		TotalSessions uint32  `json:"totalSessions"`
		DurationDays  uint32  `json:"durationDays"`
		Verifier      *string `json:"verifier"`
		ChallengeType string  `json:"challengeType"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	participant, err := parseAddress("participant", req.Participant)
	if err != nil {
		return nil, err
	}
	deposit, err := parseAmount("depositAmount", req.DepositAmount)
	if err != nil {
		return nil, err
	}
	var verifier *[20]byte
	if req.Verifier != nil {
		addr, err := parseAddress("verifier", *req.Verifier)
		if err != nil {
			return nil, err
		}
		verifier = &addr
	}
	challengeType, err := parseChallengeType(req.ChallengeType)
	if err != nil {
		return nil, err
	}
	challenge, err := s.node.HabitEngine().CreateChallenge(participant, deposit, req.TotalSessions, req.DurationDays, verifier, challengeType)
	if s.metrics != nil {
		s.metrics.ObserveOp("create_challenge", err)
	}
	if err != nil {
		return nil, err
	}
	return newChallengeResult(challenge), nil
}

func parseChallengeType(raw string) (habit.ChallengeType, error) {
	switch raw {
	case "fitness":
		return habit.ChallengeTypeFitness, nil
	case "education":
		return habit.ChallengeTypeEducation, nil
	case "meditation":
		return habit.ChallengeTypeMeditation, nil
	case "custom":
		return habit.ChallengeTypeCustom, nil
	default:
		return 0, invalidParams("challengeType: unknown type %q", raw)
	}
}

func (s *Server) habitMarkSession(params []json.RawMessage) (interface{}, error) {
	var req struct {
		ChallengeID     string `json:"challengeId"`
		Signer          string `json:"signer"`
		ProofHash       string `json:"proofHash"`
		DurationMinutes uint16 `json:"durationMinutes"`
		Location        string `json:"location"`
		Notes           string `json:"notes"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := parseHash("challengeId", req.ChallengeID)
	if err != nil {
		return nil, err
	}
	signer, err := parseAddress("signer", req.Signer)
	if err != nil {
		return nil, err
	}
	session, err := s.node.HabitEngine().MarkSessionComplete(id, signer, req.ProofHash, habit.SessionMetadata{
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Notes:           req.Notes,
	})
	if s.metrics != nil {
		s.metrics.ObserveOp("mark_session", err)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"sessionId":     hexHash(session.ID),
		"sessionNumber": session.SessionNumber,
		"timestamp":     session.Timestamp,
		"verifiedBy":    hexAddress(session.VerifiedBy),
	}, nil
}

func (s *Server) habitUseGracePeriod(params []json.RawMessage) (interface{}, error) {
	return s.gracePeriod(params, false)
}

func (s *Server) habitExtendGracePeriod(params []json.RawMessage) (interface{}, error) {
	return s.gracePeriod(params, true)
}

func (s *Server) gracePeriod(params []json.RawMessage, admin bool) (interface{}, error) {
	var req struct {
		ChallengeID string `json:"challengeId"`
		Caller      string `json:"caller"`
		Reason      string `json:"reason"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := parseHash("challengeId", req.ChallengeID)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	var record *habit.GracePeriodRecord
	op := "use_grace_period"
	if admin {
		op = "extend_grace_period"
		record, err = s.node.HabitEngine().ExtendGracePeriod(id, caller, req.Reason)
	} else {
		record, err = s.node.HabitEngine().UseGracePeriod(id, caller, req.Reason)
	}
	if s.metrics != nil {
		s.metrics.ObserveOp(op, err)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"recordId":   hexHash(record.ID),
		"ordinal":    record.Ordinal,
		"newEndTime": record.NewEndTime,
	}, nil
}

func (s *Server) habitFinalizeChallenge(params []json.RawMessage) (interface{}, error) {
	var req struct {
		ChallengeID string `json:"challengeId"`
		Caller      string `json:"caller"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := parseHash("challengeId", req.ChallengeID)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	record, err := s.node.HabitEngine().FinalizeChallenge(id, caller)
	if s.metrics != nil {
		s.metrics.ObserveOp("finalize_challenge", err)
	}
	if err != nil {
		return nil, err
	}
	challenge, lookupErr := s.node.HabitEngine().Challenge(id)
	status := ""
	if lookupErr == nil {
		status = challenge.Status.String()
		if s.metrics != nil {
			s.metrics.Finalizations.WithLabelValues(status).Inc()
		}
	}
	return map[string]interface{}{
		"challengeId":            hexHash(record.Challenge),
		"participant":            hexAddress(record.Participant),
		"status":                 status,
		"completionRateBps":      record.CompletionRateBps,
		"penaltyAmount":          amountString(record.PenaltyAmount),
		"rewardPoolContribution": amountString(record.RewardPoolContribution),
		"timestamp":              record.Timestamp,
	}, nil
}

func (s *Server) habitGetConfig(params []json.RawMessage) (interface{}, error) {
	if len(params) != 0 {
		return nil, invalidParams("habit_getConfig takes no params")
	}
	cfg, err := s.node.HabitEngine().Config()
	if err != nil {
		return nil, err
	}
	return newConfigResult(cfg), nil
}

func (s *Server) habitGetChallenge(params []json.RawMessage) (interface{}, error) {
	var req struct {
		ChallengeID string `json:"challengeId"`
		Participant string `json:"participant"`
		Ordinal     uint64 `json:"ordinal"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	var id [32]byte
	var err error
	if req.ChallengeID != "" {
		if id, err = parseHash("challengeId", req.ChallengeID); err != nil {
			return nil, err
		}
	} else {
		participant, err := parseAddress("participant", req.Participant)
		if err != nil {
			return nil, err
		}
		id = habit.ChallengeAddress(participant, req.Ordinal)
	}
	challenge, err := s.node.HabitEngine().Challenge(id)
	if err != nil {
		return nil, err
	}
	return newChallengeResult(challenge), nil
}

func (s *Server) habitGetUserStats(params []json.RawMessage) (interface{}, error) {
	var req struct {
		User string `json:"user"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, err
	}
	stats, err := s.node.HabitEngine().UserStats(user)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"user":                   hexAddress(stats.User),
		"totalChallenges":        stats.TotalChallenges,
		"challengesCompleted":    stats.ChallengesCompleted,
		"challengesPartial":      stats.ChallengesPartial,
		"challengesFailed":       stats.ChallengesFailed,
		"perfectCompletions":     stats.PerfectCompletions,
		"totalSessionsCompleted": stats.TotalSessionsCompleted,
		"totalDeposited":         amountString(stats.TotalDeposited),
		"totalRefunded":          amountString(stats.TotalRefunded),
		"totalPenalties":         amountString(stats.TotalPenalties),
		"totalRewardsClaimed":    amountString(stats.TotalRewardsClaimed),
		"currentStreak":          stats.CurrentStreak,
		"bestStreak":             stats.BestStreak,
		"lastActivity":           stats.LastActivity,
	}, nil
}

func (s *Server) custodyMint(params []json.RawMessage) (interface{}, error) {
	var req struct {
		Address string `json:"address"`
		Token   string `json:"token"`
		Amount  string `json:"amount"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		return nil, err
	}
	token, err := habit.NormalizeToken(req.Token)
	if err != nil {
		return nil, invalidParams("token: %v", err)
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Mint(addr, token, amount); err != nil {
		return nil, err
	}
	balance, err := s.node.BalanceOf(addr, token)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": amountString(balance)}, nil
}

func (s *Server) custodyBalance(params []json.RawMessage) (interface{}, error) {
	var req struct {
		Address string `json:"address"`
		Token   string `json:"token"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		return nil, err
	}
	token, err := habit.NormalizeToken(req.Token)
	if err != nil {
		return nil, invalidParams("token: %v", err)
	}
	balance, err := s.node.BalanceOf(addr, token)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": amountString(balance)}, nil
}
