package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"crowdsale/crypto"
	"crowdsale/gateway/middleware"
	"crowdsale/native/sale"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	txRatePerSecond = 5
	txRateBurst     = 10
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type Server struct {
	engine *sale.Engine
	auth   *middleware.Authenticator
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(engine *sale.Engine, auth *middleware.Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		auth:     auth,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler returns the HTTP handler serving JSON-RPC on / and prometheus
// metrics on /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	if isMutatingMethod(req.Method) && !s.allowSource(clientSource(r)) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	if isAdminMethod(req.Method) {
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	switch req.Method {
	case "sale_buyTokens":
		s.handleBuyTokens(w, r, req)
	case "sale_setReferrer":
		s.handleSetReferrer(w, r, req)
	case "sale_claimReferralBonus":
		s.handleClaimReferralBonus(w, r, req)
	case "sale_releaseVestedTokens":
		s.handleReleaseVestedTokens(w, r, req)
	case "sale_unlockTokens":
		s.handleUnlockTokens(w, r, req)
	case "sale_claimDistribution":
		s.handleClaimDistribution(w, r, req)
	case "sale_claimRefund":
		s.handleClaimRefund(w, r, req)
	case "sale_getCurrentTokenPrice":
		s.handleGetCurrentTokenPrice(w, r, req)
	case "sale_getTier":
		s.handleGetTier(w, r, req)
	case "sale_getTierCount":
		s.handleGetTierCount(w, r, req)
	case "sale_getParticipant":
		s.handleGetParticipant(w, r, req)
	case "sale_isWhitelisted":
		s.handleIsWhitelisted(w, r, req)
	case "sale_getLockedTokens":
		s.handleGetLockedTokens(w, r, req)
	case "sale_getVestingSchedule":
		s.handleGetVestingSchedule(w, r, req)
	case "sale_getDistributions":
		s.handleGetDistributions(w, r, req)
	case "sale_getReferralBonus":
		s.handleGetReferralBonus(w, r, req)
	case "sale_getStatus":
		s.handleGetStatus(w, r, req)
	case "sale_updateWhitelist":
		s.handleUpdateWhitelist(w, r, req)
	case "sale_addTier":
		s.handleAddTier(w, r, req)
	case "sale_advanceTier":
		s.handleAdvanceTier(w, r, req)
	case "sale_toggleActive":
		s.handleToggleActive(w, r, req)
	case "sale_toggleCooldown":
		s.handleToggleCooldown(w, r, req)
	case "sale_toggleVesting":
		s.handleToggleVesting(w, r, req)
	case "sale_pause":
		s.handlePause(w, r, req)
	case "sale_unpause":
		s.handleUnpause(w, r, req)
	case "sale_withdrawFunds":
		s.handleWithdrawFunds(w, r, req)
	case "sale_finalize":
		s.handleFinalize(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func isAdminMethod(method string) bool {
	switch method {
	case "sale_updateWhitelist", "sale_addTier", "sale_advanceTier",
		"sale_toggleActive", "sale_toggleCooldown", "sale_toggleVesting",
		"sale_pause", "sale_unpause", "sale_withdrawFunds", "sale_finalize":
		return true
	}
	return false
}

func isMutatingMethod(method string) bool {
	switch method {
	case "sale_buyTokens", "sale_setReferrer", "sale_claimReferralBonus",
		"sale_releaseVestedTokens", "sale_unlockTokens",
		"sale_claimDistribution", "sale_claimRefund":
		return true
	}
	return isAdminMethod(method)
}

func (s *Server) requireAdmin(r *http.Request) *RPCError {
	if s.auth == nil {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	if err := s.auth.Verify(r.Header.Get("Authorization"), middleware.ScopeSaleAdmin); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(txRatePerSecond), txRateBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- shared param helpers ---

func decodeAddressParam(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, err
	}
	return [20]byte(addr), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be a positive decimal string")
	}
	return amount, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func unmarshalSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeEngineError maps engine failures onto RPC error codes. Rule violations
// surface as invalid-params with the sentinel message; anything else is a
// server error.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, sale.ErrSaleInactive),
		errors.Is(err, sale.ErrNotWhitelisted),
		errors.Is(err, sale.ErrOutOfRange),
		errors.Is(err, sale.ErrCooldownActive),
		errors.Is(err, sale.ErrHardCapExceeded),
		errors.Is(err, sale.ErrTierCapExceeded),
		errors.Is(err, sale.ErrIncorrectPayment),
		errors.Is(err, sale.ErrNoActiveTier),
		errors.Is(err, sale.ErrInsufficientFunds),
		errors.Is(err, sale.ErrCliffNotOver),
		errors.Is(err, sale.ErrLockupNotOver),
		errors.Is(err, sale.ErrCurrentTierNotEnded),
		errors.Is(err, sale.ErrDistributionNotReleasable),
		errors.Is(err, sale.ErrRefundNotAvailable),
		errors.Is(err, sale.ErrAlreadyClaimed),
		errors.Is(err, sale.ErrAlreadyRefunded),
		errors.Is(err, sale.ErrNothingLocked),
		errors.Is(err, sale.ErrNothingAccrued),
		errors.Is(err, sale.ErrNothingInvested),
		errors.Is(err, sale.ErrSelfReferral),
		errors.Is(err, sale.ErrReferrerAlreadySet),
		errors.Is(err, sale.ErrSoftCapReached),
		errors.Is(err, sale.ErrInvalidAmount),
		errors.Is(err, sale.ErrInvalidTier),
		errors.Is(err, sale.ErrTierOverlap),
		errors.Is(err, sale.ErrNoMoreTiers),
		errors.Is(err, sale.ErrTierNotFound),
		errors.Is(err, sale.ErrDistributionNotFound),
		errors.Is(err, sale.ErrSaleFinalized),
		errors.Is(err, sale.ErrWrongPolicy):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, sale.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
	}
}
