package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/susu3304/pokerledger/internal/model"
)

func (a *API) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := a.repo.Players(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if players == nil {
		players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (a *API) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Avatar      string `json:"avatar"`
		AvatarColor string `json:"avatar_color"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := model.Player{
		ID:          req.ID,
		Name:        req.Name,
		Avatar:      req.Avatar,
		AvatarColor: req.AvatarColor,
		CreatedAt:   time.Now(),
	}
	if err := a.repo.CreatePlayer(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := a.repo.Player(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.ledger.PlayerStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleRecentConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := a.repo.RecentConfigs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if configs == nil {
		configs = []model.GameConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyInAmount float64  `json:"buy_in_amount"`
		ChipRatio   float64  `json:"chip_ratio"`
		BlindLevel  string   `json:"blind_level"`
		PlayerIDs   []string `json:"player_ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tableID := mux.Vars(r)["table_id"]
	cfg := model.GameConfig{BuyInAmount: req.BuyInAmount, ChipRatio: req.ChipRatio, BlindLevel: req.BlindLevel}
	sess, err := a.ledger.StartSession(r.Context(), tableID, cfg, req.PlayerIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if c := claimsFrom(r.Context()); c != nil {
		log.Printf("session %s started at table %s by %s", sess.ID, tableID, c.Username)
	}
	writeJSON(w, http.StatusCreated, sess)
}

type statusResponse struct {
	Session  model.Session `json:"session"`
	TotalPot float64       `json:"total_pot"`
	Playing  []string      `json:"still_playing"`
}

func (a *API) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := a.ledger.Status(r.Context(), mux.Vars(r)["table_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	playing := sess.StillPlaying()
	if playing == nil {
		playing = []string{}
	}
	writeJSON(w, http.StatusOK, statusResponse{Session: sess, TotalPot: sess.TotalPot(), Playing: playing})
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id is required", http.StatusBadRequest)
		return
	}

	joined, err := a.ledger.Join(r.Context(), mux.Vars(r)["table_id"], req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"joined": joined})
}

func (a *API) handleBuyIn(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Delta int `json:"delta"`
	}{Delta: 1}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	p, err := a.ledger.AddBuyIn(r.Context(), vars["table_id"], vars["player_id"], req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleExtraBuyIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	p, err := a.ledger.AddExtraBuyIn(r.Context(), vars["table_id"], vars["player_id"], req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleCashOut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount *float64 `json:"amount"`
		// Chips, when set, is converted with the session's chip ratio.
		Chips *float64 `json:"chips"`
	}
	if err := decodeBody(r, &req); err != nil || (req.Amount == nil) == (req.Chips == nil) {
		http.Error(w, "exactly one of amount or chips is required", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	var (
		p   model.SessionPlayer
		err error
	)
	if req.Chips != nil {
		p, err = a.ledger.CashOutChips(r.Context(), vars["table_id"], vars["player_id"], *req.Chips)
	} else {
		p, err = a.ledger.CashOut(r.Context(), vars["table_id"], vars["player_id"], *req.Amount)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := a.ledger.End(r.Context(), mux.Vars(r)["table_id"], req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.ledger.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) handleSettlement(w http.ResponseWriter, r *http.Request) {
	out, err := a.ledger.Settlement(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PayerID string `json:"payer_id"`
		PayeeID string `json:"payee_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.PayerID == "" || req.PayeeID == "" {
		http.Error(w, "payer_id and payee_id are required", http.StatusBadRequest)
		return
	}

	t, err := a.ledger.CompleteTransfer(r.Context(), mux.Vars(r)["id"], req.PayerID, req.PayeeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
