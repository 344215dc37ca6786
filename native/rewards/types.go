package rewards

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// EpochPeriodSeconds is the fixed length of a reward epoch.
const EpochPeriodSeconds = 7 * 86_400

const (
	nsRewardState = "rewards/state"
	nsClaimable   = "rewards/claimable"
)

var (
	ErrNotInitialized = errors.New("rewards: state not initialized")
	ErrUnauthorized   = errors.New("rewards: unauthorized")
	ErrEpochNotReady  = errors.New("rewards: epoch not ready")
	ErrNothingToClaim = errors.New("rewards: nothing to claim")
)

// RewardState is the singleton tracking epoch progression. NextEpochTime
// advances by exactly one period per distribution. OutstandingClaims is the
// sum of all credited but unclaimed balances; the distributable pool is the
// vault balance minus this reserve, so an unclaimed reward is never split a
// second time.
type RewardState struct {
	LastEpochProcessed uint64
	NextEpochTime      int64
	TotalDistributed   *big.Int
	OutstandingClaims  *big.Int
}

// Clone returns a deep copy of the state.
func (s *RewardState) Clone() *RewardState {
	if s == nil {
		return nil
	}
	clone := *s
	if s.TotalDistributed != nil {
		clone.TotalDistributed = new(big.Int).Set(s.TotalDistributed)
	} else {
		clone.TotalDistributed = big.NewInt(0)
	}
	if s.OutstandingClaims != nil {
		clone.OutstandingClaims = new(big.Int).Set(s.OutstandingClaims)
	} else {
		clone.OutstandingClaims = big.NewInt(0)
	}
	return &clone
}

// StateAddress returns the address of the reward state singleton.
func StateAddress() [32]byte {
	return ethcrypto.Keccak256Hash([]byte(nsRewardState))
}

// ClaimableAddress derives the address of a participant's claimable balance.
func ClaimableAddress(participant [20]byte) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(nsClaimable), participant[:])
}
