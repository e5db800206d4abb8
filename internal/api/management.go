package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bouncewatch/internal/policy"
	"bouncewatch/internal/recipient"
	"bouncewatch/internal/store"
)

// RecipientStatus is one recipient with its counters
type RecipientStatus struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	BounceCount   int    `json:"bounce_count"`
	SendCount     int    `json:"send_count"`
	OverThreshold bool   `json:"over_threshold"`
}

// AddRecipientRequest is the request body for POST /recipients
type AddRecipientRequest struct {
	Email string `json:"email"`
}

// ResetRequest is the request body for POST /recipients/{id}/reset
type ResetRequest struct {
	ActorID int64 `json:"actor_id,omitempty"`
}

// ResetResponse reports whether the reset changed anything
type ResetResponse struct {
	ID    int64 `json:"id"`
	Reset bool  `json:"reset"`
}

// SuppressionsResponse is the response for GET /suppressions
type SuppressionsResponse struct {
	Total        int                 `json:"total"`
	Suppressions []store.Suppression `json:"suppressions"`
}

// SyncResponse is the response for POST /suppressions/sync
type SyncResponse struct {
	Entries int `json:"entries"`
}

// handleListRecipients handles GET /api/v1/recipients. An email query
// filters to the recipients registered for that address.
func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	var (
		recipients []recipient.Recipient
		err        error
	)

	if email := r.URL.Query().Get("email"); email != "" {
		recipients, err = s.store.RecipientsByEmail(r.Context(), email)
	} else {
		limit := queryInt(r, "limit", 100)
		offset := queryInt(r, "offset", 0)
		recipients, err = s.store.ListRecipients(r.Context(), limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list recipients", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list recipients")
		return
	}

	result := make([]RecipientStatus, 0, len(recipients))
	for _, rec := range recipients {
		status, err := s.recipientStatus(r, rec)
		if err != nil {
			s.sendError(w, http.StatusInternalServerError, "Failed to read counters")
			return
		}
		result = append(result, status)
	}

	s.sendJSON(w, http.StatusOK, result)
}

// handleGetRecipient handles GET /api/v1/recipients/{id}
func (s *Server) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid recipient id")
		return
	}

	rec, err := s.store.Recipient(r.Context(), id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get recipient")
		return
	}
	if rec == nil {
		s.sendError(w, http.StatusNotFound, "Recipient not found")
		return
	}

	status, err := s.recipientStatus(r, *rec)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to read counters")
		return
	}
	s.sendJSON(w, http.StatusOK, status)
}

// handleAddRecipient handles POST /api/v1/recipients
func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var req AddRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		s.sendError(w, http.StatusBadRequest, "email is required")
		return
	}

	rec, err := s.store.PutRecipient(r.Context(), req.Email)
	if err != nil {
		s.logger.Error("failed to add recipient", "error", err)
		s.sendError(w, http.StatusBadRequest, "Failed to add recipient")
		return
	}

	s.sendJSON(w, http.StatusCreated, RecipientStatus{ID: rec.ID, Email: rec.Email})
}

// handleResetRecipient handles POST /api/v1/recipients/{id}/reset
func (s *Server) handleResetRecipient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid recipient id")
		return
	}

	var req ResetRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	changed, err := s.processor.ResetRecipient(r.Context(), id, req.ActorID)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "Recipient not found")
		return
	}

	s.sendJSON(w, http.StatusOK, ResetResponse{ID: id, Reset: changed})
}

// handleListNotifications handles GET /api/v1/notifications
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListLog(r.Context(), store.LogFilter{
		Email:  r.URL.Query().Get("email"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list notifications", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	if entries == nil {
		entries = []store.LogEntry{}
	}
	s.sendJSON(w, http.StatusOK, entries)
}

// handleListSuppressions handles GET /api/v1/suppressions
func (s *Server) handleListSuppressions(w http.ResponseWriter, r *http.Request) {
	sups, err := s.store.ListSuppressions(r.Context(), queryInt(r, "limit", 100), queryInt(r, "offset", 0))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to list suppressions")
		return
	}
	total, err := s.store.SuppressionCount(r.Context())
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to count suppressions")
		return
	}

	if sups == nil {
		sups = []store.Suppression{}
	}
	s.sendJSON(w, http.StatusOK, SuppressionsResponse{Total: total, Suppressions: sups})
}

// handleGetSuppression handles GET /api/v1/suppressions/{email}
func (s *Server) handleGetSuppression(w http.ResponseWriter, r *http.Request) {
	sup, err := s.store.Suppressed(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get suppression")
		return
	}
	if sup == nil {
		s.sendError(w, http.StatusNotFound, "Address not suppressed")
		return
	}
	s.sendJSON(w, http.StatusOK, sup)
}

// handleSyncSuppressions handles POST /api/v1/suppressions/sync
func (s *Server) handleSyncSuppressions(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		s.sendError(w, http.StatusServiceUnavailable, "Suppression sync is not configured")
		return
	}

	entries, err := s.syncer.Sync(r.Context())
	if err != nil {
		s.logger.Error("suppression sync failed", "error", err)
		s.sendError(w, http.StatusBadGateway, "Suppression sync failed")
		return
	}
	s.sendJSON(w, http.StatusOK, SyncResponse{Entries: entries})
}

func (s *Server) recipientStatus(r *http.Request, rec recipient.Recipient) (RecipientStatus, error) {
	c, err := s.store.Counters(r.Context(), rec.ID)
	if err != nil {
		return RecipientStatus{}, err
	}
	return RecipientStatus{
		ID:            rec.ID,
		Email:         rec.Email,
		BounceCount:   c.BounceCount,
		SendCount:     c.SendCount,
		OverThreshold: policy.OverThreshold(c, s.processor.Policy()),
	}, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
