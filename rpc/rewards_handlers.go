package rpc

import (
	"encoding/json"
)

func (s *Server) rewardsDistribute(params []json.RawMessage) (interface{}, error) {
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
	distribution, err := s.node.RewardsEngine().Distribute(caller)
	if s.metrics != nil {
		s.metrics.ObserveOp("rewards_distribute", err)
	}
	if err != nil {
		return nil, err
	}
	shares := make([]map[string]string, 0, len(distribution.Shares))
	for _, share := range distribution.Shares {
		shares = append(shares, map[string]string{
			"participant": hexAddress(share.Address),
			"amount":      amountString(share.Amount),
		})
	}
	if s.metrics != nil {
		s.metrics.RewardsAssigned.Add(float64Amount(distribution.TotalAssigned))
	}
	result := map[string]interface{}{
		"totalAssigned": amountString(distribution.TotalAssigned),
		"dust":          amountString(distribution.Dust),
		"shares":        shares,
	}
	if state, stateErr := s.node.RewardsEngine().State(); stateErr == nil {
		result["epoch"] = state.LastEpochProcessed
		result["nextEpochTime"] = state.NextEpochTime
	}
	return result, nil
}

func (s *Server) rewardsClaim(params []json.RawMessage) (interface{}, error) {
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
	amount, err := s.node.RewardsEngine().Claim(caller)
	if s.metrics != nil {
		s.metrics.ObserveOp("rewards_claim", err)
	}
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RewardsClaimed.Add(float64Amount(amount))
	}
	return map[string]string{"amount": amountString(amount)}, nil
}

func (s *Server) rewardsState(params []json.RawMessage) (interface{}, error) {
	if len(params) != 0 {
		return nil, invalidParams("rewards_state takes no params")
	}
	state, err := s.node.RewardsEngine().State()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"lastEpochProcessed": state.LastEpochProcessed,
		"nextEpochTime":      state.NextEpochTime,
		"totalDistributed":   amountString(state.TotalDistributed),
	}, nil
}

func (s *Server) rewardsClaimable(params []json.RawMessage) (interface{}, error) {
	var req struct {
		Participant string `json:"participant"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	participant, err := parseAddress("participant", req.Participant)
	if err != nil {
		return nil, err
	}
	claimable, err := s.node.RewardsEngine().Claimable(participant)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimable": amountString(claimable)}, nil
}
