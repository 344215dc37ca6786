package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitvault/native/habit"
	"habitvault/native/rewards"
	"habitvault/observability"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
)

// authTokenEnv names the environment variable carrying the bearer token that
// guards mutating methods. When unset, mutating methods are rejected.
const authTokenEnv = "HABITVAULT_RPC_TOKEN"

const maxRequestBytes = 1 << 20

// Node bundles the engines and state access the RPC server exposes.
type Node interface {
	HabitEngine() *habit.Engine
	RewardsEngine() *rewards.Engine
	Mint(addr [20]byte, token string, amount *big.Int) error
	BalanceOf(addr [20]byte, token string) (*big.Int, error)
}

// Server exposes the protocol engines over JSON-RPC 2.0.
type Server struct {
	node    Node
	log     *slog.Logger
	metrics *observability.Metrics
	// mu serializes state mutations so record occupancy checks inside the
	// engines stay race free.
	mu        sync.Mutex
	authToken string
}

// NewServer builds a server around the node. The logger and metrics may be
// nil.
func NewServer(node Node, log *slog.Logger, metrics *observability.Metrics) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		node:      node,
		log:       log,
		metrics:   metrics,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// Router assembles the HTTP routes: the JSON-RPC endpoint, a health probe and
// the Prometheus scrape endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handleRPC)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reqID := uuid.NewString()
	log := s.log.With("request_id", reqID)

	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req rpcRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		writeError(w, req.ID, codeInvalidRequest, "jsonrpc 2.0 request required")
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, req.ID, codeMethodNotFound, "unknown method "+req.Method)
		if s.metrics != nil {
			s.metrics.RPCRequests.WithLabelValues(req.Method, "not_found").Inc()
		}
		return
	}
	if handler.mutating {
		if !s.authorized(r) {
			writeError(w, req.ID, codeUnauthorized, "missing or invalid bearer token")
			if s.metrics != nil {
				s.metrics.RPCRequests.WithLabelValues(req.Method, "unauthorized").Inc()
			}
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	result, err := handler.fn(req.Params)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		code := codeServerError
		var paramErr *paramError
		if errors.As(err, &paramErr) {
			code = codeInvalidParams
		}
		writeError(w, req.ID, code, err.Error())
		log.Warn("rpc request failed", "method", req.Method, "error", err)
	} else {
		writeResult(w, req.ID, result)
	}
	if s.metrics != nil {
		s.metrics.RPCRequests.WithLabelValues(req.Method, outcome).Inc()
		s.metrics.RPCDuration.Observe(time.Since(started).Seconds())
	}
	log.Debug("rpc request served", "method", req.Method, "outcome", outcome, "elapsed", time.Since(started))
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

type methodHandler struct {
	fn       func(params []json.RawMessage) (interface{}, error)
	mutating bool
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"habit_initialize":        {fn: s.habitInitialize, mutating: true},
		"habit_pause":             {fn: s.habitPause, mutating: true},
		"habit_unpause":           {fn: s.habitUnpause, mutating: true},
		"habit_updateConfig":      {fn: s.habitUpdateConfig, mutating: true},
		"habit_createChallenge":   {fn: s.habitCreateChallenge, mutating: true},
		"habit_markSession":       {fn: s.habitMarkSession, mutating: true},
		"habit_useGracePeriod":    {fn: s.habitUseGracePeriod, mutating: true},
		"habit_extendGracePeriod": {fn: s.habitExtendGracePeriod, mutating: true},
		"habit_finalizeChallenge": {fn: s.habitFinalizeChallenge, mutating: true},
		"habit_getConfig":         {fn: s.habitGetConfig},
		"habit_getChallenge":      {fn: s.habitGetChallenge},
		"habit_getUserStats":      {fn: s.habitGetUserStats},
		"habitvault_mint":         {fn: s.custodyMint, mutating: true},
		"habitvault_balance":      {fn: s.custodyBalance},
		"rewards_distribute":      {fn: s.rewardsDistribute, mutating: true},
		"rewards_claim":           {fn: s.rewardsClaim, mutating: true},
		"rewards_state":           {fn: s.rewardsState},
		"rewards_claimable":       {fn: s.rewardsClaimable},
	}
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
