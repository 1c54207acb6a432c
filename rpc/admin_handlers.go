package rpc

import (
	"net/http"

	"crowdsale/native/sale"
)

type whitelistParams struct {
	Caller    string   `json:"caller"`
	Addresses []string `json:"addresses"`
	Allowed   bool     `json:"allowed"`
}

type addTierParams struct {
	Caller      string `json:"caller"`
	Price       string `json:"price"`
	MaxTokens   string `json:"maxTokens"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	MinPurchase string `json:"minPurchase"`
	MaxPurchase string `json:"maxPurchase"`
	DiscountBps uint32 `json:"discountBps"`
}

type flagResult struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

func (s *Server) handleUpdateWhitelist(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params whitelistParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if len(params.Addresses) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "addresses are required", nil)
		return
	}
	addrs := make([][20]byte, 0, len(params.Addresses))
	for _, entry := range params.Addresses {
		addr, err := decodeAddressParam(entry)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid whitelist address", err.Error())
			return
		}
		addrs = append(addrs, addr)
	}
	if err := s.engine.UpdateWhitelist(caller, addrs, params.Allowed); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"updated": len(addrs),
		"allowed": params.Allowed,
	})
}

func (s *Server) handleAddTier(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addTierParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	tier := &sale.Tier{
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		DiscountBps: params.DiscountBps,
	}
	if params.Price != "" {
		if tier.Price, err = parseAmount(params.Price); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid price", err.Error())
			return
		}
	}
	if params.MaxTokens != "" {
		if tier.MaxTokens, err = parseAmount(params.MaxTokens); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid maxTokens", err.Error())
			return
		}
	}
	if params.MinPurchase != "" {
		if tier.MinPurchase, err = parseAmount(params.MinPurchase); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid minPurchase", err.Error())
			return
		}
	}
	if params.MaxPurchase != "" {
		if tier.MaxPurchase, err = parseAmount(params.MaxPurchase); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid maxPurchase", err.Error())
			return
		}
	}
	added, err := s.engine.AddTier(caller, tier)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTier(added))
}

func (s *Server) handleAdvanceTier(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	index, err := s.engine.AdvanceTier(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint32{"currentTier": index})
}

func (s *Server) handleToggleActive(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleToggle(w, req, "active", s.engine.ToggleActive)
}

func (s *Server) handleToggleCooldown(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleToggle(w, req, "cooldown", s.engine.ToggleCooldown)
}

func (s *Server) handleToggleVesting(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleToggle(w, req, "vesting", s.engine.ToggleVesting)
}

func (s *Server) handleToggle(w http.ResponseWriter, req *RPCRequest, flag string, toggle func([20]byte) (bool, error)) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	value, err := toggle(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, flagResult{Flag: flag, Value: value})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, flagResult{Flag: "paused", Value: true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, flagResult{Flag: "paused", Value: false})
}

func (s *Server) handleWithdrawFunds(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	withdrawn, err := s.engine.WithdrawFunds(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Caller: callerParam(req), Amount: bigString(withdrawn)})
}

func (s *Server) handleFinalize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	if err := s.engine.Finalize(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, flagResult{Flag: "finalized", Value: true})
}
