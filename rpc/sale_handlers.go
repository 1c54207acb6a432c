package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"crowdsale/observability/metrics"
)

type buyTokensParams struct {
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}

type setReferrerParams struct {
	Caller   string `json:"caller"`
	Referrer string `json:"referrer"`
}

type addressParams struct {
	Caller string `json:"caller"`
}

type claimDistributionParams struct {
	Caller string `json:"caller"`
	Index  int    `json:"index"`
}

type purchaseResult struct {
	Buyer         string `json:"buyer"`
	Amount        string `json:"amount"`
	Price         string `json:"price"`
	TokensGranted string `json:"tokensGranted"`
	Immediate     string `json:"immediate"`
	Locked        string `json:"locked"`
	Vested        string `json:"vested"`
	TierIndex     string `json:"tierIndex"`
	PurchasedAt   int64  `json:"purchasedAt"`
}

type amountResult struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleBuyTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params buyTokensParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	buyer, err := decodeAddressParam(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.engine.BuyTokens(buyer, amount)
	if err != nil {
		metrics.Sale().ObserveRejection(rejectionReason(err))
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, purchaseResult{
		Buyer:         params.Buyer,
		Amount:        bigString(receipt.Amount),
		Price:         bigString(receipt.Price),
		TokensGranted: bigString(receipt.TokensGranted),
		Immediate:     bigString(receipt.Immediate),
		Locked:        bigString(receipt.Locked),
		Vested:        bigString(receipt.Vested),
		TierIndex:     strconv.FormatUint(uint64(receipt.TierIndex), 10),
		PurchasedAt:   receipt.PurchasedAt,
	})
}

func (s *Server) handleSetReferrer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setReferrerParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	referrer, err := decodeAddressParam(params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid referrer address", err.Error())
		return
	}
	if err := s.engine.SetReferrer(caller, referrer); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"caller":   params.Caller,
		"referrer": params.Referrer,
	})
}

func (s *Server) handleClaimReferralBonus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	claimed, err := s.engine.ClaimReferralBonus(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Caller: callerParam(req), Amount: bigString(claimed)})
}

func (s *Server) handleReleaseVestedTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	released, err := s.engine.ReleaseVestedTokens(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Caller: callerParam(req), Amount: bigString(released)})
}

func (s *Server) handleUnlockTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	unlocked, err := s.engine.UnlockTokens(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Caller: callerParam(req), Amount: bigString(unlocked)})
}

func (s *Server) handleClaimDistribution(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimDistributionParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	claimed, err := s.engine.ClaimDistribution(caller, params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"caller": params.Caller,
		"index":  params.Index,
		"amount": bigString(claimed),
	})
}

func (s *Server) handleClaimRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	refunded, err := s.engine.ClaimRefund(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Caller: callerParam(req), Amount: bigString(refunded)})
}

// decodeCaller parses the single {caller} parameter object shared by the
// claim-style handlers, writing the error response itself on failure.
func (s *Server) decodeCaller(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var params addressParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return [20]byte{}, false
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return [20]byte{}, false
	}
	return caller, true
}

// rejectionReason reduces an engine error to a bounded metric label by
// stripping the package prefix from the sentinel message.
func rejectionReason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(err.Error(), "sale: ")
}

func callerParam(req *RPCRequest) string {
	var params addressParams
	if len(req.Params) == 1 {
		_ = json.Unmarshal(req.Params[0], &params)
	}
	return params.Caller
}
