package habit

import (
	"math/big"
	"strings"
)

// Default deposit bounds in base units of the accepted six-decimal token
// (5 units and 10,000 units respectively).
var (
	DefaultMinDeposit = big.NewInt(5_000_000)
	DefaultMaxDeposit = big.NewInt(10_000_000_000)
)

// Config is the protocol-wide singleton. It is created once at bootstrap and
// only admin operations mutate it afterwards.
type Config struct {
	Authority         [20]byte
	Treasury          [20]byte
	Charity           [20]byte
	Token             string
	FeePercentage     uint8
	RewardPercentage  uint8
	CharityPercentage uint8
	MinDeposit        *big.Int
	MaxDeposit        *big.Int
	Paused            bool
	TotalChallenges   uint64
	TotalVolume       *big.Int
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.MinDeposit != nil {
		clone.MinDeposit = new(big.Int).Set(c.MinDeposit)
	} else {
		clone.MinDeposit = big.NewInt(0)
	}
	if c.MaxDeposit != nil {
		clone.MaxDeposit = new(big.Int).Set(c.MaxDeposit)
	} else {
		clone.MaxDeposit = big.NewInt(0)
	}
	if c.TotalVolume != nil {
		clone.TotalVolume = new(big.Int).Set(c.TotalVolume)
	} else {
		clone.TotalVolume = big.NewInt(0)
	}
	return &clone
}

// Validate checks the invariants that must hold after initialization and
// after every admin update.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNotInitialized
	}
	if int(c.FeePercentage)+int(c.RewardPercentage)+int(c.CharityPercentage) != 100 {
		return ErrInvalidPercentageSplit
	}
	if c.MinDeposit == nil || c.MaxDeposit == nil || c.MinDeposit.Sign() <= 0 {
		return ErrAmountRange
	}
	if c.MinDeposit.Cmp(c.MaxDeposit) > 0 {
		return ErrInvalidDepositBounds
	}
	if c.Treasury == ([20]byte{}) {
		return ErrInvalidTreasury
	}
	if c.Charity == ([20]byte{}) {
		return ErrInvalidCharity
	}
	if _, err := NormalizeToken(c.Token); err != nil {
		return err
	}
	return nil
}

// ConfigUpdate describes an admin mutation of the tunable config fields. Nil
// fields are left untouched. The percentage triple must be updated together
// so the sum invariant can be revalidated atomically.
type ConfigUpdate struct {
	FeePercentage     *uint8
	RewardPercentage  *uint8
	CharityPercentage *uint8
	MinDeposit        *big.Int
	MaxDeposit        *big.Int
}

// NormalizeToken ensures the provided token symbol matches a supported
// six-decimal stable asset and returns the canonical uppercase form.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case "USDT", "USDH":
		return trimmed, nil
	default:
		return "", ErrInvalidToken
	}
}
