package habit

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"habitvault/core/types"
)

const (
	EventTypeInitialized        = "habit.initialized"
	EventTypeChallengeCreated   = "habit.challenge.created"
	EventTypeSessionCompleted   = "habit.session.completed"
	EventTypeGracePeriodUsed    = "habit.grace.used"
	EventTypeChallengeFinalized = "habit.challenge.finalized"
	EventTypeProtocolPaused     = "habit.protocol.paused"
	EventTypeProtocolUnpaused   = "habit.protocol.unpaused"
	EventTypeConfigUpdated      = "habit.config.updated"
)

// NewInitializedEvent returns the canonical event payload emitted once at
// protocol bootstrap.
func NewInitializedEvent(cfg *Config) *types.Event {
	attrs := make(map[string]string)
	if cfg != nil {
		attrs["authority"] = hex.EncodeToString(cfg.Authority[:])
		attrs["treasury"] = hex.EncodeToString(cfg.Treasury[:])
		attrs["charity"] = hex.EncodeToString(cfg.Charity[:])
		attrs["token"] = cfg.Token
		attrs["feePct"] = strconv.FormatUint(uint64(cfg.FeePercentage), 10)
		attrs["rewardPct"] = strconv.FormatUint(uint64(cfg.RewardPercentage), 10)
		attrs["charityPct"] = strconv.FormatUint(uint64(cfg.CharityPercentage), 10)
	}
	return &types.Event{Type: EventTypeInitialized, Attributes: attrs}
}

// NewChallengeCreatedEvent returns the canonical event payload for a freshly
// created challenge.
func NewChallengeCreatedEvent(c *Challenge) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["id"] = hex.EncodeToString(c.ID[:])
		attrs["participant"] = hex.EncodeToString(c.Participant[:])
		attrs["deposit"] = amountString(c.DepositAmount)
		attrs["totalSessions"] = strconv.FormatUint(uint64(c.TotalSessions), 10)
		attrs["endTime"] = strconv.FormatInt(c.EndTime, 10)
		attrs["type"] = c.Type.String()
		if c.Verifier != nil {
			attrs["verifier"] = hex.EncodeToString(c.Verifier[:])
		}
	}
	return &types.Event{Type: EventTypeChallengeCreated, Attributes: attrs}
}

// NewSessionCompletedEvent returns the canonical event payload for an
// attested session.
func NewSessionCompletedEvent(s *Session) *types.Event {
	attrs := make(map[string]string)
	if s != nil {
		attrs["challenge"] = hex.EncodeToString(s.Challenge[:])
		attrs["sessionNumber"] = strconv.FormatUint(uint64(s.SessionNumber), 10)
		attrs["timestamp"] = strconv.FormatInt(s.Timestamp, 10)
		attrs["verifiedBy"] = hex.EncodeToString(s.VerifiedBy[:])
	}
	return &types.Event{Type: EventTypeSessionCompleted, Attributes: attrs}
}

// NewGracePeriodUsedEvent returns the canonical event payload for a grace
// period use.
func NewGracePeriodUsedEvent(c *Challenge, record *GracePeriodRecord) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["challenge"] = hex.EncodeToString(c.ID[:])
		attrs["remaining"] = strconv.FormatUint(uint64(c.MaxGracePeriods-c.GracePeriodsUsed), 10)
		attrs["newEndTime"] = strconv.FormatInt(c.EndTime, 10)
	}
	if record != nil {
		attrs["ordinal"] = strconv.FormatUint(uint64(record.Ordinal), 10)
	}
	return &types.Event{Type: EventTypeGracePeriodUsed, Attributes: attrs}
}

// NewChallengeFinalizedEvent returns the canonical event payload for a
// finalized challenge.
func NewChallengeFinalizedEvent(c *Challenge, record *FinalizationRecord, refund *big.Int) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["challenge"] = hex.EncodeToString(c.ID[:])
		attrs["participant"] = hex.EncodeToString(c.Participant[:])
		attrs["status"] = c.Status.String()
	}
	if record != nil {
		attrs["completionRateBps"] = strconv.FormatUint(record.CompletionRateBps, 10)
		attrs["penalty"] = amountString(record.PenaltyAmount)
		attrs["rewardPoolContribution"] = amountString(record.RewardPoolContribution)
	}
	attrs["refund"] = amountString(refund)
	return &types.Event{Type: EventTypeChallengeFinalized, Attributes: attrs}
}

// NewProtocolPausedEvent returns the canonical pause event payload.
func NewProtocolPausedEvent(authority [20]byte) *types.Event {
	return &types.Event{Type: EventTypeProtocolPaused, Attributes: map[string]string{
		"authority": hex.EncodeToString(authority[:]),
	}}
}

// NewProtocolUnpausedEvent returns the canonical unpause event payload.
func NewProtocolUnpausedEvent(authority [20]byte) *types.Event {
	return &types.Event{Type: EventTypeProtocolUnpaused, Attributes: map[string]string{
		"authority": hex.EncodeToString(authority[:]),
	}}
}

// NewConfigUpdatedEvent returns the canonical config update event payload.
func NewConfigUpdatedEvent(cfg *Config) *types.Event {
	attrs := make(map[string]string)
	if cfg != nil {
		attrs["feePct"] = strconv.FormatUint(uint64(cfg.FeePercentage), 10)
		attrs["rewardPct"] = strconv.FormatUint(uint64(cfg.RewardPercentage), 10)
		attrs["charityPct"] = strconv.FormatUint(uint64(cfg.CharityPercentage), 10)
		attrs["minDeposit"] = amountString(cfg.MinDeposit)
		attrs["maxDeposit"] = amountString(cfg.MaxDeposit)
	}
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
