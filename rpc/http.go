package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"evregistry/core"
	"evregistry/crypto"
	"evregistry/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	rateLimitPerSecond = 50
	rateLimitBurst     = 100
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Server exposes the registry over JSON-RPC 2.0, with a websocket event
// stream at /ws/events and Prometheus metrics at /metrics.
type Server struct {
	registry  *core.Registry
	authToken string
	hub       *EventHub

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires the RPC surface to the registry. The bearer token for
// mutating methods is read from EVR_RPC_TOKEN; when unset, mutations are
// rejected.
func NewServer(registry *core.Registry, hub *EventHub) *Server {
	return &Server{
		registry:  registry,
		authToken: strings.TrimSpace(os.Getenv("EVR_RPC_TOKEN")),
		hub:       hub,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the rate limiter for one client source, creating it on
// first sight. Limiting is per client so a noisy caller cannot starve others.
func (s *Server) limiterFor(source string) *rate.Limiter {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rateLimitPerSecond), rateLimitBurst)
		s.limiters[source] = limiter
	}
	return limiter
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

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
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
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "bearer token required"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

// handle is the main request handler that routes to method handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limiterFor(clientSource(r)).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

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

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.route(recorder, r, req)

	module := "rpc"
	if idx := strings.Index(req.Method, "_"); idx > 0 {
		module = req.Method[:idx]
	}
	observability.ModuleMetrics().Observe(module, req.Method, recorder.status, time.Since(started))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	// Mutating methods require the bearer token; reads are open.
	switch req.Method {
	case "roles_grant", "roles_revoke", "roles_addManufacturer", "roles_removeManufacturer",
		"bond_deposit", "bond_lock", "bond_penalize",
		"passport_mint", "passport_mintBatch", "passport_transfer",
		"passport_updateSupplyChain", "passport_markRecycled", "passport_markReturned":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	switch req.Method {
	case "roles_grant":
		s.handleRolesGrant(w, req)
	case "roles_revoke":
		s.handleRolesRevoke(w, req)
	case "roles_has":
		s.handleRolesHas(w, req)
	case "roles_members":
		s.handleRolesMembers(w, req)
	case "roles_addManufacturer":
		s.handleRolesAddManufacturer(w, req)
	case "roles_removeManufacturer":
		s.handleRolesRemoveManufacturer(w, req)
	case "bond_minimumDeposit":
		s.handleBondMinimumDeposit(w, req)
	case "bond_deposit":
		s.handleBondDeposit(w, req)
	case "bond_lock":
		s.handleBondLock(w, req)
	case "bond_penalize":
		s.handleBondPenalize(w, req)
	case "bond_account":
		s.handleBondAccount(w, req)
	case "passport_mint":
		s.handlePassportMint(w, req)
	case "passport_mintBatch":
		s.handlePassportMintBatch(w, req)
	case "passport_transfer":
		s.handlePassportTransfer(w, req)
	case "passport_updateSupplyChain":
		s.handlePassportUpdateSupplyChain(w, req)
	case "passport_markRecycled":
		s.handlePassportMarkRecycled(w, req)
	case "passport_markReturned":
		s.handlePassportMarkReturned(w, req)
	case "passport_view":
		s.handlePassportView(w, req)
	case "passport_ownerOf":
		s.handlePassportOwnerOf(w, req)
	case "passport_tokensOf":
		s.handlePassportTokensOf(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseBech32Address(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.EVRPrefix, addr[:]).String()
}
