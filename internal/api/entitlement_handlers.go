package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// ========== Entitlement handlers ==========

// HandleResolveEntitlement computes the effective entitlement for a user
func (s *RESTServer) HandleResolveEntitlement(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	entitlement, err := s.engine.Resolve(r.Context(), companyID, userID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, entitlement)
}

// ========== Event log handlers ==========

// HandleListEvents lists event log entries
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	var filters storage.EventLogFilters

	if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid company ID")
			return
		}
		filters.CompanyID = &id
	}

	if raw := r.URL.Query().Get("campaign_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid campaign ID")
			return
		}
		filters.CampaignID = &id
	}

	if raw := r.URL.Query().Get("type"); raw != "" {
		t := models.EventType(raw)
		filters.Type = &t
	}

	if raw := r.URL.Query().Get("level"); raw != "" {
		l := models.EventLevel(raw)
		filters.Level = &l
	}

	if raw := r.URL.Query().Get("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
		filters.StartTime = &t
	}

	if raw := r.URL.Query().Get("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid end_time")
			return
		}
		filters.EndTime = &t
	}

	events, total, err := s.store.ListEventLogs(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
