package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/model"
	"github.com/fraudsight/fraudsight/internal/pipeline"
)

const defaultListLimit = 50

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

// precheck is the advisory pre-annotation returned on submission. The
// pipeline's evaluation on consume remains authoritative; this only gives the
// caller immediate feedback.
type precheck struct {
	Score       float64  `json:"score"`
	IsFraud     bool     `json:"is_fraud"`
	RuleReasons []string `json:"rule_reasons"`
}

type submitResponse struct {
	Enqueued bool     `json:"enqueued"`
	ID       string   `json:"id"`
	Precheck precheck `json:"precheck"`
}

type recentItem struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleSubmit validates an event, pre-annotates it and publishes it to the
// broker. It never writes the store; durable state appears only once the
// pipeline consumes the event.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var event model.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	if err := s.validate.Struct(event); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondWithError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("Invalid field %s (%s)", verrs[0].Field(), verrs[0].Tag()))
			return
		}
		respondWithError(w, http.StatusUnprocessableEntity, "Invalid event")
		return
	}

	result := pipeline.Classify(s.evaluator, s.scorer, event)

	payload, err := json.Marshal(event)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Encoding error")
		return
	}

	if err := s.publisher.Publish(r.Context(), []byte(event.TransactionID), payload); err != nil {
		common.LogError(err, "Publish failed", common.Fields{"transaction_id": event.TransactionID})
		if errors.Is(err, common.ErrBrokerUnavailable) {
			respondWithError(w, http.StatusServiceUnavailable, "Broker unavailable")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Publish failed")
		return
	}

	reasons := result.RuleReasons
	if reasons == nil {
		reasons = []string{}
	}
	respondWithJSON(w, http.StatusAccepted, submitResponse{
		Enqueued: true,
		ID:       event.TransactionID,
		Precheck: precheck{
			Score:       result.Score,
			IsFraud:     result.IsFraud,
			RuleReasons: reasons,
		},
	})
}

func (s *Server) handleListFlagged(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	var status *model.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		candidate := model.Status(raw)
		if !candidate.Valid() {
			respondWithError(w, http.StatusBadRequest, "Unknown status filter")
			return
		}
		status = &candidate
	}

	items, err := s.store.ListFlagged(r.Context(), limit, status)
	if err != nil {
		common.LogError(err, "Flagged listing failed", nil)
		respondWithError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleRecentFlagged serves the latest flagged ids straight from the cache,
// with the raw payload snapshot where one is still present. Entries may lag
// or be missing; the store endpoints are authoritative.
func (s *Server) handleRecentFlagged(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	ids, err := s.cache.RecentFlaggedIDs(r.Context(), limit)
	if err != nil {
		common.LogError(err, "Recent flagged lookup failed", nil)
		respondWithError(w, http.StatusInternalServerError, "Cache unavailable")
		return
	}

	items := make([]recentItem, 0, len(ids))
	for _, id := range ids {
		item := recentItem{ID: id}
		if payload, err := s.cache.GetPayload(r.Context(), id); err == nil {
			item.Event = json.RawMessage(payload)
		}
		items = append(items, item)
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	txn, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		common.LogError(err, "Transaction lookup failed", common.Fields{"transaction_id": id})
		respondWithError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	respondWithJSON(w, http.StatusOK, txn)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	decision := model.Decision(req.Decision)
	if !decision.Valid() {
		respondWithError(w, http.StatusUnprocessableEntity, "Decision must be APPROVED or REJECTED")
		return
	}

	review := model.Review{
		TransactionID: id,
		Reviewer:      userFromContext(r.Context()),
		Decision:      decision,
		Notes:         req.Notes,
	}
	if err := s.store.SaveReview(r.Context(), review); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		common.LogError(err, "Review save failed", common.Fields{"transaction_id": id})
		respondWithError(w, http.StatusInternalServerError, "Review save failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"transaction_id": id,
		"status":         decision.Status(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")

	stats, err := s.store.Stats(r.Context(), window)
	if err != nil {
		common.LogError(err, "Stats query failed", common.Fields{"window": window})
		respondWithError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}
