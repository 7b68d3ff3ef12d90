package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/lazypower/vigil/internal/guardian"
	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/store"
)

// maxBodySize caps request bodies; the largest is a transaction carrying
// one signature per owner.
const maxBodySize = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return false
	}
	return true
}

func (s *Server) handleSafe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SafeResponse{
		Address:   s.wallet.Address(),
		Owners:    s.wallet.GetOwners(),
		Threshold: s.wallet.GetThreshold(),
		Guard:     s.wallet.GetGuard(),
		Nonce:     s.wallet.Nonce(),
	})
}

func (s *Server) handleLastActive(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address %q", raw))
		return
	}
	id := common.HexToAddress(raw)

	last, err := s.tracker.LastActive(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	removable, err := s.guardian.Removable(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := LivenessResponse{
		Address:   id,
		IsOwner:   s.wallet.IsOwner(id),
		Removable: removable,
	}
	if !last.IsZero() {
		resp.LastActive = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	err := liveness.VerifyRefresh(s.wallet.Address(), req.Address, req.IssuedAt, req.Signature, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := s.tracker.RefreshSelf(req.Address); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	last, err := s.tracker.LastActive(req.Address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, LivenessResponse{
		Address:    req.Address,
		LastActive: &last,
		IsOwner:    s.wallet.IsOwner(req.Address),
	})
}

func (s *Server) handleExecTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decode(w, r, &req) {
		return
	}

	nonce := s.wallet.Nonce()
	hash, err := s.wallet.ExecTransaction(req.Transaction, req.Signatures)
	if err != nil {
		s.log.Warn().Err(err).Str("hash", hash.Hex()).Msg("transaction rejected")
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionResponse{Hash: hash, Nonce: nonce})
}

func (s *Server) handleGuardian(w http.ResponseWriter, r *http.Request) {
	interval := s.guardian.LivenessInterval()
	writeJSON(w, http.StatusOK, GuardianResponse{
		Safe:             s.guardian.Safe(),
		Tracker:          s.guardian.TrackerAddress(),
		LivenessInterval: interval.String(),
		LivenessSeconds:  int64(interval.Seconds()),
		MinOwners:        s.guardian.MinOwners(),
		FallbackOwner:    s.guardian.FallbackOwner(),
	})
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 || n > guardian.MaxOwners {
		writeError(w, http.StatusBadRequest, fmt.Errorf("owner count must be an integer between 0 and %d", guardian.MaxOwners))
		return
	}
	writeJSON(w, http.StatusOK, ThresholdResponse{Owners: n, Threshold: s.guardian.Threshold(n)})
}

func (s *Server) handleInactive(w http.ResponseWriter, r *http.Request) {
	owners, err := s.guardian.Inactive()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if owners == nil {
		owners = []common.Address{}
	}
	writeJSON(w, http.StatusOK, OwnersResponse{Owners: owners})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Owners) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("owners required"))
		return
	}

	hints, err := s.guardian.PlanRemoval(req.Owners)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{PreviousOwners: hints})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req RemoveRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.guardian.RemoveOwners(req.PreviousOwners, req.Owners); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, RemoveResponse{
		Owners:    s.wallet.GetOwners(),
		Threshold: s.wallet.GetThreshold(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.db.RecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []liveness.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}
