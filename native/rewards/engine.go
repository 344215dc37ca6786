package rewards

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"habitvault/core/events"
	"habitvault/core/types"
	"habitvault/native/habit"
)

var errNilState = errors.New("rewards engine: state not configured")

type engineState interface {
	ConfigGet() (*habit.Config, bool)
	RewardStateGet() (*RewardState, bool)
	RewardStatePut(*RewardState) error
	PendingFinalizations() ([]*habit.FinalizationRecord, error)
	FinalizationPut(*habit.FinalizationRecord) error
	UserStatsGet(addr [20]byte) (*habit.UserStats, bool)
	UserStatsPut(*habit.UserStats) error
	ClaimableGet(addr [20]byte) (*big.Int, error)
	ClaimablePut(addr [20]byte, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	VaultAddress(name string) ([20]byte, error)
}

type rewardsEvent struct {
	evt *types.Event
}

func (e rewardsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rewardsEvent) Event() *types.Event { return e.evt }

// Engine advances the epoch reward state: it aggregates unrewarded
// finalization records into per-participant scores, splits the rewards vault
// proportionally into claimable balances, and later pays claims out.
type Engine struct {
	state   engineState
	emitter events.Emitter
	policy  ScorePolicy
	nowFn   func() int64
}

// NewEngine creates a reward engine with the default score policy and a
// no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		policy:  DefaultScorePolicy(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPolicy overrides the score policy. Passing nil restores the default.
func (e *Engine) SetPolicy(policy ScorePolicy) {
	if policy == nil {
		e.policy = DefaultScorePolicy()
		return
	}
	e.policy = policy
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine.
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
	e.emitter.Emit(rewardsEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// EnsureState creates the reward state singleton on first use, seeding the
// first epoch boundary one period ahead of now. Safe to call repeatedly.
func (e *Engine) EnsureState() (*RewardState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if state, ok := e.state.RewardStateGet(); ok {
		return state.Clone(), nil
	}
	state := &RewardState{
		NextEpochTime:     e.now() + EpochPeriodSeconds,
		TotalDistributed:  big.NewInt(0),
		OutstandingClaims: big.NewInt(0),
	}
	if err := e.state.RewardStatePut(state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// State returns a copy of the reward state singleton.
func (e *Engine) State() (*RewardState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, ok := e.state.RewardStateGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	return state.Clone(), nil
}

// Claimable returns the participant's unclaimed reward balance.
func (e *Engine) Claimable(participant [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.ClaimableGet(participant)
}

// Distribute processes one reward epoch. Only the protocol authority may
// invoke it, and only once the epoch boundary has passed. A distribution with
// no eligible participants or an empty pool still advances the epoch.
func (e *Engine) Distribute(caller [20]byte) (*Distribution, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok := e.state.ConfigGet()
	if !ok {
		return nil, habit.ErrNotInitialized
	}
	if caller != cfg.Authority {
		return nil, ErrUnauthorized
	}
	state, ok := e.state.RewardStateGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	now := e.now()
	if now < state.NextEpochTime {
		return nil, ErrEpochNotReady
	}

	pending, err := e.state.PendingFinalizations()
	if err != nil {
		return nil, err
	}
	weights := make([]WeightEntry, 0, len(pending))
	consumed := make([]*habit.FinalizationRecord, 0, len(pending))
	for _, record := range pending {
		if record == nil || record.Rewarded {
			continue
		}
		if record.RewardPoolContribution == nil || record.RewardPoolContribution.Sign() <= 0 {
			continue
		}
		stats, _ := e.state.UserStatsGet(record.Participant)
		weights = append(weights, WeightEntry{
			Address: record.Participant,
			Weight:  e.policy.Score(record, stats),
		})
		consumed = append(consumed, record)
	}

	rewardsVault, err := e.state.VaultAddress(habit.VaultRewards)
	if err != nil {
		return nil, err
	}
	vaultAcc, err := e.state.GetAccount(rewardsVault[:])
	if err != nil {
		return nil, err
	}
	// Credited but unclaimed balances stay reserved in the vault; only the
	// excess is distributable this epoch.
	if state.OutstandingClaims == nil {
		state.OutstandingClaims = big.NewInt(0)
	}
	pool := new(big.Int).Sub(vaultAcc.BalanceOf(cfg.Token), state.OutstandingClaims)
	if pool.Sign() < 0 {
		pool = big.NewInt(0)
	}

	distribution := &Distribution{TotalAssigned: big.NewInt(0), Dust: new(big.Int).Set(pool)}
	if pool.Sign() > 0 && len(weights) > 0 {
		distribution, err = SplitPool(pool, weights)
		if err != nil {
			return nil, err
		}
		for _, share := range distribution.Shares {
			if share.Amount == nil || share.Amount.Sign() == 0 {
				continue
			}
			existing, err := e.state.ClaimableGet(share.Address)
			if err != nil {
				return nil, err
			}
			if err := e.state.ClaimablePut(share.Address, new(big.Int).Add(existing, share.Amount)); err != nil {
				return nil, err
			}
		}
		for _, record := range consumed {
			record.Rewarded = true
			if err := e.state.FinalizationPut(record); err != nil {
				return nil, err
			}
		}
	}

	state.LastEpochProcessed++
	state.NextEpochTime += EpochPeriodSeconds
	if state.TotalDistributed == nil {
		state.TotalDistributed = big.NewInt(0)
	}
	state.TotalDistributed = new(big.Int).Add(state.TotalDistributed, distribution.TotalAssigned)
	state.OutstandingClaims = new(big.Int).Add(state.OutstandingClaims, distribution.TotalAssigned)
	if err := e.state.RewardStatePut(state); err != nil {
		return nil, err
	}

	e.emit(NewDistributedEvent(state.LastEpochProcessed, distribution.TotalAssigned, len(distribution.Shares)))
	return distribution, nil
}

// Claim pays out the caller's accumulated claimable balance from the rewards
// vault and zeroes it. Fails when nothing is claimable.
func (e *Engine) Claim(caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok := e.state.ConfigGet()
	if !ok {
		return nil, habit.ErrNotInitialized
	}
	claimable, err := e.state.ClaimableGet(caller)
	if err != nil {
		return nil, err
	}
	if claimable == nil || claimable.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	rewardsVault, err := e.state.VaultAddress(habit.VaultRewards)
	if err != nil {
		return nil, err
	}
	if err := e.transferToken(rewardsVault, caller, cfg.Token, claimable); err != nil {
		return nil, err
	}
	if err := e.state.ClaimablePut(caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	if state, ok := e.state.RewardStateGet(); ok {
		if state.OutstandingClaims == nil {
			state.OutstandingClaims = big.NewInt(0)
		}
		state.OutstandingClaims = new(big.Int).Sub(state.OutstandingClaims, claimable)
		if state.OutstandingClaims.Sign() < 0 {
			state.OutstandingClaims = big.NewInt(0)
		}
		if err := e.state.RewardStatePut(state); err != nil {
			return nil, err
		}
	}

	stats, ok := e.state.UserStatsGet(caller)
	if !ok {
		stats = habit.NewUserStats(caller)
	}
	stats.Normalize()
	stats.TotalRewardsClaimed = new(big.Int).Add(stats.TotalRewardsClaimed, claimable)
	stats.LastActivity = e.now()
	if err := e.state.UserStatsPut(stats); err != nil {
		return nil, err
	}

	e.emit(NewClaimedEvent(caller, claimable))
	return new(big.Int).Set(claimable), nil
}

func (e *Engine) transferToken(from, to [20]byte, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("rewards: negative transfer amount")
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
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("rewards: insufficient %s balance", token)
	}
	fromAcc.SetBalance(token, new(big.Int).Sub(fromBal, amount))
	toAcc.SetBalance(token, new(big.Int).Add(toAcc.BalanceOf(token), amount))
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}
