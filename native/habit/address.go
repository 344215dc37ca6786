package habit

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Deterministic addressing: every record address is the keccak256 hash of a
// fixed namespace tag and the record's natural key. The same function serves
// creation (address must be vacant) and lookup (address must be occupied), so
// a replayed operation collides with the occupied address instead of silently
// succeeding twice.

const (
	nsConfig       = "habit/config"
	nsChallenge    = "habit/challenge"
	nsSession      = "habit/session"
	nsUserStats    = "habit/user_stats"
	nsGrace        = "habit/grace"
	nsFinalization = "habit/finalization"
)

// Vault names understood by the custody state.
const (
	VaultDeposits = "deposits"
	VaultRewards  = "rewards"
)

// ConfigAddress returns the address of the protocol config singleton.
func ConfigAddress() [32]byte {
	return ethcrypto.Keccak256Hash([]byte(nsConfig))
}

// ChallengeAddress derives the address for a participant's challenge ordinal.
func ChallengeAddress(participant [20]byte, ordinal uint64) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ordinal)
	return ethcrypto.Keccak256Hash([]byte(nsChallenge), participant[:], buf[:])
}

// SessionAddress derives the address for a session ordinal within a challenge.
func SessionAddress(challenge [32]byte, ordinal uint32) [32]byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], ordinal)
	return ethcrypto.Keccak256Hash([]byte(nsSession), challenge[:], buf[:])
}

// UserStatsAddress derives the address for a participant's stats record.
func UserStatsAddress(participant [20]byte) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(nsUserStats), participant[:])
}

// GraceAddress derives the address for a grace period audit record, keyed by
// the pre-increment usage counter.
func GraceAddress(challenge [32]byte, ordinal uint8) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(nsGrace), challenge[:], []byte{ordinal})
}

// FinalizationAddress derives the address for a challenge's finalization
// record.
func FinalizationAddress(challenge [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(nsFinalization), challenge[:])
}
