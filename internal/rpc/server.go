// Package rpc exposes the account and settlement core over JSON-RPC 2.0,
// plus a read-only WebSocket stream of settlement events.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/klingon-exchange/accountcore/internal/credential"
	"github.com/klingon-exchange/accountcore/internal/ledger"
	"github.com/klingon-exchange/accountcore/internal/store"
	"github.com/klingon-exchange/accountcore/pkg/logging"
)

// JSON-RPC 2.0 standard error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeServerError    = -32000
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handler processes one JSON-RPC method call and returns its result.
type Handler func(params json.RawMessage) (interface{}, error)

// Engines indexes the settlement workers this server can manually trigger,
// keyed by shard index.
type Engines map[int]*ledger.Engine

// Server is the JSON-RPC + WebSocket front door for the account core.
type Server struct {
	credentials *credential.Service
	ingestor    *ledger.Ingestor
	engines     Engines
	store       *store.Store
	log         *logging.Logger

	handlers map[string]Handler
	wsHub    *WSHub

	server   *http.Server
	listener net.Listener
	mu       sync.RWMutex
}

// NewServer constructs a Server wired to the given account core components.
// engines may be nil or empty if this process runs no settlement workers.
func NewServer(credentials *credential.Service, ingestor *ledger.Ingestor, engines Engines, s *store.Store) *Server {
	srv := &Server{
		credentials: credentials,
		ingestor:    ingestor,
		engines:     engines,
		store:       s,
		log:         logging.GetDefault().Component("rpc"),
		handlers:    make(map[string]Handler),
	}
	srv.registerHandlers()
	return srv
}

func (s *Server) registerHandlers() {
	s.handlers["accounts_signup"] = s.handleSignup
	s.handlers["accounts_login"] = s.handleLogin
	s.handlers["deposits_ingest"] = s.handleDepositsIngest
	s.handlers["settlement_tick"] = s.handleSettlementTick
	s.handlers["settlement_settleOne"] = s.handleSettlementSettleOne
}

// Start begins listening on addr and serving JSON-RPC and WebSocket
// requests. It returns once the listener is open; Serve runs in a
// background goroutine.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.wsHub = NewWSHub()
	go s.wsHub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("OPTIONS /", s.handleCORS)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.server = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC server stopped unexpectedly", "error", err)
		}
	}()

	s.log.Info("RPC server listening", "addr", addr)
	return nil
}

// Stop gracefully shuts down the RPC server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// WSHub returns the server's WebSocket hub, for broadcasting settlement
// events from outside the request path (e.g. a tick loop).
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, codeParseError, "parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, codeInvalidRequest, "invalid jsonrpc version", nil)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		s.writeError(w, req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
		return
	}

	result, err := handler(req.Params)
	if err != nil {
		s.writeError(w, req.ID, codeServerError, err.Error(), nil)
		return
	}

	s.writeResult(w, req.ID, result)
}

func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", Result: result, ID: id})
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message, Data: data}, ID: id})
}

func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
