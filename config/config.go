package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"habitvault/native/habit"
)

// Config is the daemon configuration loaded from a TOML file.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// Backend selects the key-value store: "leveldb", "bolt" or "memory".
	Backend  string `toml:"Backend"`
	Env      string `toml:"Env"`
	LogLevel string `toml:"LogLevel"`
	LogFile  string `toml:"LogFile"`

	Protocol Protocol `toml:"protocol"`
	Rewards  Rewards  `toml:"rewards"`
}

// Protocol holds the bootstrap parameters applied when the store is empty.
type Protocol struct {
	Authority         string `toml:"Authority"`
	Treasury          string `toml:"Treasury"`
	Charity           string `toml:"Charity"`
	Token             string `toml:"Token"`
	FeePercentage     uint8  `toml:"FeePercentage"`
	RewardPercentage  uint8  `toml:"RewardPercentage"`
	CharityPercentage uint8  `toml:"CharityPercentage"`
}

// Rewards tunes the epoch distribution scoring policy.
type Rewards struct {
	RateWeight       uint64 `toml:"RateWeight"`
	StreakWeight     uint64 `toml:"StreakWeight"`
	ConsistencyBonus uint64 `toml:"ConsistencyBonus"`
}

// Load reads the configuration file at path, creating it with defaults when
// it does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8645",
		DataDir:       "./habitvault-data",
		Backend:       "leveldb",
		Env:           "dev",
		LogLevel:      "info",
		Protocol: Protocol{
			Token:             "USDT",
			FeePercentage:     50,
			RewardPercentage:  30,
			CharityPercentage: 20,
		},
		Rewards: Rewards{
			RateWeight:       1,
			StreakWeight:     250,
			ConsistencyBonus: 500,
		},
	}
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(defaultConfig()); err != nil {
		return fmt.Errorf("config: write defaults: %w", err)
	}
	return nil
}

// Validate checks the loaded configuration for internal consistency. The
// protocol section is only validated when an authority is set, because a
// store that is already initialized needs no bootstrap parameters.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unsupported backend %q", c.Backend)
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: listen address required")
	}
	if strings.TrimSpace(c.Protocol.Authority) == "" {
		return nil
	}
	if _, err := c.Protocol.AuthorityAddress(); err != nil {
		return err
	}
	if _, err := c.Protocol.TreasuryAddress(); err != nil {
		return err
	}
	if _, err := c.Protocol.CharityAddress(); err != nil {
		return err
	}
	total := int(c.Protocol.FeePercentage) + int(c.Protocol.RewardPercentage) + int(c.Protocol.CharityPercentage)
	if total != 100 {
		return fmt.Errorf("config: protocol percentages sum to %d, want 100", total)
	}
	if _, err := habit.NormalizeToken(c.Protocol.Token); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	var out [20]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, fmt.Errorf("config: %s: %w", field, err)
	}
	if len(decoded) != 20 {
		return out, fmt.Errorf("config: %s: want 20 bytes, got %d", field, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// AuthorityAddress decodes the configured authority address.
func (p Protocol) AuthorityAddress() ([20]byte, error) {
	return parseAddress("authority", p.Authority)
}

// TreasuryAddress decodes the configured treasury address.
func (p Protocol) TreasuryAddress() ([20]byte, error) {
	return parseAddress("treasury", p.Treasury)
}

// CharityAddress decodes the configured charity address.
func (p Protocol) CharityAddress() ([20]byte, error) {
	return parseAddress("charity", p.Charity)
}
