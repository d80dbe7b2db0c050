package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/klingon-exchange/accountcore/internal/credential"
	"github.com/klingon-exchange/accountcore/internal/ledger"
	"github.com/klingon-exchange/accountcore/internal/store"
)

// accountView is the wire-safe projection of a store.Account: it omits the
// password hash, salt, and wallet secret material.
type accountView struct {
	ID                   string `json:"id"`
	Username             string `json:"username"`
	Active               bool   `json:"active"`
	DepositWalletAddress string `json:"depositWalletAddress"`
}

type signupParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(raw json.RawMessage) (interface{}, error) {
	var p signupParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	account, err := s.credentials.Signup(credential.SignupRequest{Username: p.Username, Password: p.Password})
	if err != nil {
		return nil, err
	}

	return toAccountView(account), nil
}

type loginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(raw json.RawMessage) (interface{}, error) {
	var p loginParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	account, err := s.credentials.Login(credential.LoginRequest{Username: p.Username, Password: p.Password})
	if err != nil {
		return nil, err
	}

	return toAccountView(account), nil
}

func toAccountView(a *store.Account) accountView {
	return accountView{
		ID:                   a.ID,
		Username:             a.Username,
		Active:               a.Active,
		DepositWalletAddress: a.DepositWalletAddress,
	}
}

type depositsIngestParams struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
	Height   int64  `json:"height"`
	Amount   string `json:"amount"`
}

type depositsIngestResult struct {
	DepositID     string `json:"depositId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Matched       bool   `json:"matched"`
}

func (s *Server) handleDepositsIngest(raw json.RawMessage) (interface{}, error) {
	var p depositsIngestParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	result, err := s.ingestor.Ingest(ledger.BlockchainTransaction{
		ID:       p.ID,
		SenderID: p.SenderID,
		Height:   p.Height,
		Amount:   p.Amount,
	})
	if err != nil {
		return nil, err
	}

	if result.Deposit == nil {
		return depositsIngestResult{Matched: false}, nil
	}
	return depositsIngestResult{
		DepositID:     result.Deposit.ID,
		TransactionID: result.Transaction.ID,
		Matched:       true,
	}, nil
}

type settlementTickParams struct {
	ShardIndex int `json:"shardIndex"`
}

func (s *Server) handleSettlementTick(raw json.RawMessage) (interface{}, error) {
	var p settlementTickParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	engine, ok := s.engines[p.ShardIndex]
	if !ok {
		return nil, fmt.Errorf("no settlement engine registered for shard %d", p.ShardIndex)
	}

	result, err := engine.Tick()
	if err != nil {
		return nil, err
	}

	if s.wsHub != nil && result.Settled > 0 {
		s.wsHub.Broadcast(EventSettlementTick, result)
	}

	return result, nil
}

type settlementSettleOneParams struct {
	TransactionID string `json:"transactionId"`
}

// handleSettlementSettleOne is the administrative single-transaction
// bypass. It writes settled=true without computing a folded balance, so it
// must never be reachable from anything but this explicit operator call.
func (s *Server) handleSettlementSettleOne(raw json.RawMessage) (interface{}, error) {
	var p settlementSettleOneParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if err := s.store.SettleTransaction(p.TransactionID); err != nil {
		return nil, err
	}

	return map[string]bool{"settled": true}, nil
}
