package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"
)

type bondAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type bondCallerParams struct {
	Caller string `json:"caller"`
}

type bondPenalizeParams struct {
	Caller       string `json:"caller"`
	Manufacturer string `json:"manufacturer"`
	Amount       string `json:"amount"`
}

type bondAccountParams struct {
	Principal string `json:"principal"`
}

type bondAccountResult struct {
	Principal string `json:"principal"`
	Balance   string `json:"balance"`
	Locked    bool   `json:"locked"`
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func (s *Server) handleBondMinimumDeposit(w http.ResponseWriter, req *RPCRequest) {
	minimum, err := s.registry.MinimumDeposit()
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"minimumDeposit": minimum.String()})
}

func (s *Server) handleBondDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params bondAmountParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.Deposit(caller, amount); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	account, err := s.registry.BondAccount(caller)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bondAccountResult{
		Principal: params.Caller,
		Balance:   account.Balance.String(),
		Locked:    account.Locked,
	})
}

func (s *Server) handleBondLock(w http.ResponseWriter, req *RPCRequest) {
	var params bondCallerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.LockDeposit(caller); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"locked": true})
}

func (s *Server) handleBondPenalize(w http.ResponseWriter, req *RPCRequest) {
	var params bondPenalizeParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manufacturer, err := parseBech32Address(params.Manufacturer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	applied, err := s.registry.Penalize(caller, manufacturer, amount)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"requested": amount.String(),
		"applied":   applied.String(),
	})
}

func (s *Server) handleBondAccount(w http.ResponseWriter, req *RPCRequest) {
	var params bondAccountParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	principal, err := parseBech32Address(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.registry.BondAccount(principal)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bondAccountResult{
		Principal: params.Principal,
		Balance:   account.Balance.String(),
		Locked:    account.Locked,
	})
}
