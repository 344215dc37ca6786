package rewards

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"habitvault/core/types"
)

const (
	EventTypeRewardsDistributed = "rewards.distributed"
	EventTypeRewardsClaimed     = "rewards.claimed"
)

// NewDistributedEvent returns the canonical event payload for a processed
// epoch.
func NewDistributedEvent(epoch uint64, assigned *big.Int, recipients int) *types.Event {
	amount := "0"
	if assigned != nil {
		amount = assigned.String()
	}
	return &types.Event{Type: EventTypeRewardsDistributed, Attributes: map[string]string{
		"epoch":      strconv.FormatUint(epoch, 10),
		"amount":     amount,
		"recipients": strconv.Itoa(recipients),
	}}
}

// NewClaimedEvent returns the canonical event payload for a reward claim.
func NewClaimedEvent(participant [20]byte, amount *big.Int) *types.Event {
	value := "0"
	if amount != nil {
		value = amount.String()
	}
	return &types.Event{Type: EventTypeRewardsClaimed, Attributes: map[string]string{
		"participant": hex.EncodeToString(participant[:]),
		"amount":      value,
	}}
}
