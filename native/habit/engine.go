package habit

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"habitvault/core/events"
	"habitvault/core/types"
)

var errNilState = errors.New("habit engine: state not configured")

type engineState interface {
	ConfigGet() (*Config, bool)
	ConfigPut(*Config) error
	ChallengeGet(id [32]byte) (*Challenge, bool)
	ChallengePut(*Challenge) error
	SessionGet(id [32]byte) (*Session, bool)
	SessionPut(*Session) error
	GraceRecordGet(id [32]byte) (*GracePeriodRecord, bool)
	GraceRecordPut(*GracePeriodRecord) error
	FinalizationGet(id [32]byte) (*FinalizationRecord, bool)
	FinalizationPut(*FinalizationRecord) error
	UserStatsGet(addr [20]byte) (*UserStats, bool)
	UserStatsPut(*UserStats) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	VaultAddress(name string) ([20]byte, error)
}

type habitEvent struct {
	evt *types.Event
}

func (e habitEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e habitEvent) Event() *types.Event { return e.evt }

// Engine wires the challenge lifecycle logic with external state and event
// emitters. Every operation validates fully before its first mutation so a
// rejected call leaves the touched records untouched.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a challenge engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(habitEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok := e.state.ConfigGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) loadChallenge(id [32]byte) (*Challenge, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	challenge, ok := e.state.ChallengeGet(id)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

func (e *Engine) loadOrCreateStats(user [20]byte) *UserStats {
	if stats, ok := e.state.UserStatsGet(user); ok {
		return stats.Normalize()
	}
	return NewUserStats(user)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// transferToken moves balance between two custody accounts. Zero amounts are
// a no-op; negative amounts are rejected.
func (e *Engine) transferToken(from, to [20]byte, token string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return ErrAmountRange
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromBal := fromAcc.BalanceOf(token)
	if fromBal.Cmp(amt) < 0 {
		return fmt.Errorf("habit: insufficient %s balance", token)
	}
	fromAcc.SetBalance(token, new(big.Int).Sub(fromBal, amt))
	toAcc.SetBalance(token, new(big.Int).Add(toAcc.BalanceOf(token), amt))
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// checkedAddSeconds returns base + delta, failing on int64 overflow.
func checkedAddSeconds(base, delta int64) (int64, error) {
	if delta > 0 && base > math.MaxInt64-delta {
		return 0, ErrTimeOverflow
	}
	if delta < 0 && base < math.MinInt64-delta {
		return 0, ErrTimeOverflow
	}
	return base + delta, nil
}

// Initialize bootstraps the protocol config singleton. It fails when the
// config already exists, when the percentage triple does not sum to 100, or
// when the custody identities are incomplete.
func (e *Engine) Initialize(authority, treasury, charity [20]byte, token string, feePct, rewardPct, charityPct uint8) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok := e.state.ConfigGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Authority:         authority,
		Treasury:          treasury,
		Charity:           charity,
		Token:             normalized,
		FeePercentage:     feePct,
		RewardPercentage:  rewardPct,
		CharityPercentage: charityPct,
		MinDeposit:        new(big.Int).Set(DefaultMinDeposit),
		MaxDeposit:        new(big.Int).Set(DefaultMaxDeposit),
		TotalVolume:       big.NewInt(0),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(cfg))
	return cfg.Clone(), nil
}

// Pause halts challenge creation and session marking. Authority only.
func (e *Engine) Pause(caller [20]byte) error {
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if cfg.Paused {
		return nil
	}
	cfg.Paused = true
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewProtocolPausedEvent(caller))
	return nil
}

// Unpause resumes normal operation. Authority only.
func (e *Engine) Unpause(caller [20]byte) error {
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if !cfg.Paused {
		return nil
	}
	cfg.Paused = false
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewProtocolUnpausedEvent(caller))
	return nil
}

// UpdateConfig applies an admin mutation of the tunable config fields,
// revalidating every invariant before the new config is persisted. A rejected
// update leaves the prior config untouched.
func (e *Engine) UpdateConfig(caller [20]byte, update ConfigUpdate) (*Config, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Authority {
		return nil, ErrUnauthorized
	}
	updated := cfg.Clone()
	if update.FeePercentage != nil {
		updated.FeePercentage = *update.FeePercentage
	}
	if update.RewardPercentage != nil {
		updated.RewardPercentage = *update.RewardPercentage
	}
	if update.CharityPercentage != nil {
		updated.CharityPercentage = *update.CharityPercentage
	}
	if update.MinDeposit != nil {
		updated.MinDeposit = new(big.Int).Set(update.MinDeposit)
	}
	if update.MaxDeposit != nil {
		updated.MaxDeposit = new(big.Int).Set(update.MaxDeposit)
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := e.state.ConfigPut(updated); err != nil {
		return nil, err
	}
	e.emit(NewConfigUpdatedEvent(updated))
	return updated.Clone(), nil
}

// Config returns a copy of the current protocol config.
func (e *Engine) Config() (*Config, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Challenge returns a copy of the stored challenge.
func (e *Engine) Challenge(id [32]byte) (*Challenge, error) {
	challenge, err := e.loadChallenge(id)
	if err != nil {
		return nil, err
	}
	return challenge.Clone(), nil
}

// UserStats returns a copy of the participant's stats record.
func (e *Engine) UserStats(user [20]byte) (*UserStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, ok := e.state.UserStatsGet(user)
	if !ok {
		return nil, fmt.Errorf("habit: no stats for participant")
	}
	return stats.Clone(), nil
}
