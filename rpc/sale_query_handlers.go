package rpc

import (
	"encoding/json"
	"net/http"

	"crowdsale/native/sale"
)

type tierResult struct {
	Index       uint32 `json:"index"`
	Price       string `json:"price"`
	MaxTokens   string `json:"maxTokens"`
	TokensSold  string `json:"tokensSold"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	MinPurchase string `json:"minPurchase"`
	MaxPurchase string `json:"maxPurchase"`
	DiscountBps uint32 `json:"discountBps"`
}

type vestingResult struct {
	TotalAmount    string `json:"totalAmount"`
	ReleasedAmount string `json:"releasedAmount"`
	StartTime      int64  `json:"startTime"`
	Duration       int64  `json:"duration"`
	Cliff          int64  `json:"cliff"`
}

type distributionResult struct {
	Index       int    `json:"index"`
	Amount      string `json:"amount"`
	ReleaseTime int64  `json:"releaseTime"`
	Claimed     bool   `json:"claimed"`
}

type participantResult struct {
	Address          string               `json:"address"`
	Whitelisted      bool                 `json:"whitelisted"`
	TotalInvested    string               `json:"totalInvested"`
	TotalTokens      string               `json:"totalTokens"`
	LastPurchaseTime int64                `json:"lastPurchaseTime"`
	LockedTokens     string               `json:"lockedTokens"`
	LockStart        int64                `json:"lockStart"`
	Vesting          *vestingResult       `json:"vesting,omitempty"`
	Distributions    []distributionResult `json:"distributions,omitempty"`
	BonusAccrued     string               `json:"bonusAccrued"`
	Refunded         bool                 `json:"refunded"`
}

type statusResult struct {
	TotalRaised     string `json:"totalRaised"`
	TotalTokensSold string `json:"totalTokensSold"`
	CurrentTier     uint32 `json:"currentTier"`
	Active          bool   `json:"active"`
	CooldownEnabled bool   `json:"cooldownEnabled"`
	VestingEnabled  bool   `json:"vestingEnabled"`
	Paused          bool   `json:"paused"`
	Finalized       bool   `json:"finalized"`
}

func formatTier(tier *sale.Tier) tierResult {
	return tierResult{
		Index:       tier.Index,
		Price:       bigString(tier.Price),
		MaxTokens:   bigString(tier.MaxTokens),
		TokensSold:  bigString(tier.TokensSold),
		StartTime:   tier.StartTime,
		EndTime:     tier.EndTime,
		MinPurchase: bigString(tier.MinPurchase),
		MaxPurchase: bigString(tier.MaxPurchase),
		DiscountBps: tier.DiscountBps,
	}
}

func formatParticipant(addr string, p *sale.Participant) participantResult {
	result := participantResult{
		Address:          addr,
		Whitelisted:      p.Whitelisted,
		TotalInvested:    bigString(p.TotalInvested),
		TotalTokens:      bigString(p.TotalTokens),
		LastPurchaseTime: p.LastPurchaseTime,
		LockedTokens:     bigString(p.LockedTokens),
		LockStart:        p.LockStart,
		BonusAccrued:     bigString(p.BonusAccrued),
		Refunded:         p.Refunded,
	}
	if p.Vesting != nil {
		result.Vesting = &vestingResult{
			TotalAmount:    bigString(p.Vesting.TotalAmount),
			ReleasedAmount: bigString(p.Vesting.ReleasedAmount),
			StartTime:      p.Vesting.StartTime,
			Duration:       p.Vesting.Duration,
			Cliff:          p.Vesting.Cliff,
		}
	}
	for i := range p.Distributions {
		result.Distributions = append(result.Distributions, distributionResult{
			Index:       i,
			Amount:      bigString(p.Distributions[i].Amount),
			ReleaseTime: p.Distributions[i].ReleaseTime,
			Claimed:     p.Distributions[i].Claimed,
		})
	}
	return result
}

func (s *Server) handleGetCurrentTokenPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	price, tier, err := s.engine.QuotedPrice()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"price": bigString(price),
		"tier":  tier,
	})
}

func (s *Server) handleGetTier(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var index uint32
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier index expected", nil)
		return
	}
	if err := json.Unmarshal(req.Params[0], &index); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier index must be an integer", err.Error())
		return
	}
	tier, err := s.engine.Tier(index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTier(tier))
}

func (s *Server) handleGetTierCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.engine.TierCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	participant, err := s.engine.Participant(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatParticipant(callerParam(req), participant))
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	participant, err := s.engine.Participant(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, participant.Whitelisted)
}

func (s *Server) handleGetLockedTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	participant, err := s.engine.Participant(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bigString(participant.LockedTokens))
}

func (s *Server) handleGetVestingSchedule(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	participant, err := s.engine.Participant(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if participant.Vesting == nil {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, vestingResult{
		TotalAmount:    bigString(participant.Vesting.TotalAmount),
		ReleasedAmount: bigString(participant.Vesting.ReleasedAmount),
		StartTime:      participant.Vesting.StartTime,
		Duration:       participant.Vesting.Duration,
		Cliff:          participant.Vesting.Cliff,
	})
}

func (s *Server) handleGetDistributions(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	participant, err := s.engine.Participant(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]distributionResult, 0, len(participant.Distributions))
	for i := range participant.Distributions {
		out = append(out, distributionResult{
			Index:       i,
			Amount:      bigString(participant.Distributions[i].Amount),
			ReleaseTime: participant.Distributions[i].ReleaseTime,
			Claimed:     participant.Distributions[i].Claimed,
		})
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetReferralBonus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	participant, err := s.engine.Participant(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bigString(participant.BonusAccrued))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	counters, err := s.engine.Counters()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{
		TotalRaised:     bigString(counters.TotalRaised),
		TotalTokensSold: bigString(counters.TotalTokensSold),
		CurrentTier:     counters.CurrentTier,
		Active:          counters.Active,
		CooldownEnabled: counters.CooldownEnabled,
		VestingEnabled:  counters.VestingEnabled,
		Paused:          counters.Paused,
		Finalized:       counters.Finalized,
	})
}
