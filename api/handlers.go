package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"ore-boost-cli/instruction"
	ore_protocol "ore-boost-cli/solana"
)

const lamportsPerSOL = 1e9

type TokenBalanceView struct {
	Name     string           `json:"name"`
	Mint     solana.PublicKey `json:"mint"`
	Amount   uint64           `json:"amount"`
	Decimals uint8            `json:"decimals"`
	Display  string           `json:"display"`
}

type BalancesResponse struct {
	Owner    solana.PublicKey   `json:"owner"`
	Lamports uint64             `json:"lamports"`
	Tokens   []TokenBalanceView `json:"tokens"`
}

func statusFor(err error) int {
	var ledgerErr *ore_protocol.LedgerQueryError
	if errors.As(err, &ledgerErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathKey(w, r, "owner")
	if !ok {
		return
	}

	lamports, err := s.ledger.GetBalance(r.Context(), owner)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := BalancesResponse{Owner: owner, Lamports: lamports, Tokens: make([]TokenBalanceView, 0, len(s.cfg.Mints))}
	for _, m := range s.cfg.Mints {
		balance, err := s.ledger.GetTokenBalance(r.Context(), owner, m.Address)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Tokens = append(resp.Tokens, TokenBalanceView{
			Name:     m.Name,
			Mint:     m.Address,
			Amount:   balance.Amount,
			Decimals: balance.Decimals,
			Display:  instruction.FormatBaseUnits(balance.Amount, balance.Decimals),
		})
	}
	writeJSON(w, resp)
}

type BalanceRequest struct {
	PublicKey   string `json:"publicKey"`
	MintAddress string `json:"mintAddress"`
}

type BalanceResponse struct {
	BalanceSOL   float64 `json:"balanceSOL"`
	TokenBalance string  `json:"tokenBalance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PublicKey == "" || req.MintAddress == "" {
		writeError(w, http.StatusBadRequest, "missing publicKey or mintAddress")
		return
	}
	owner, err := solana.PublicKeyFromBase58(req.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid publicKey")
		return
	}
	mint, err := solana.PublicKeyFromBase58(req.MintAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mintAddress")
		return
	}

	lamports, err := s.ledger.GetBalance(r.Context(), owner)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	tokens, err := s.ledger.GetTokenBalance(r.Context(), owner, mint)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, BalanceResponse{
		BalanceSOL:   float64(lamports) / lamportsPerSOL,
		TokenBalance: instruction.FormatBaseUnits(tokens.Amount, tokens.Decimals),
	})
}

func (s *Server) handleStakeAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathKey(w, r, "owner")
	if !ok {
		return
	}
	if s.rewards == nil {
		writeError(w, http.StatusServiceUnavailable, "rewards service not configured")
		return
	}
	accounts, err := s.rewards.StakeAccounts(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, accounts)
}

// AddressesResponse lists every derived account of one staker and mint.
type AddressesResponse struct {
	Version  instruction.ProgramVersion  `json:"version"`
	Staker   solana.PublicKey            `json:"staker"`
	Mint     solana.PublicKey            `json:"mint"`
	Accounts map[string]solana.PublicKey `json:"accounts"`
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	staker, ok := pathKey(w, r, "staker")
	if !ok {
		return
	}
	mint, ok := pathKey(w, r, "mint")
	if !ok {
		return
	}
	name := r.URL.Query().Get("version")
	if name == "" {
		name = s.cfg.Version
	}
	version, err := instruction.ParseVersion(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accounts, err := DerivedAccounts(s.deriver, version, staker, mint)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, AddressesResponse{Version: version, Staker: staker, Mint: mint, Accounts: accounts})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.view.Snapshot())
}

func (s *Server) handleWindow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.view.Window())
}
