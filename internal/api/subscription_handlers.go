package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// ========== Subscription type handlers ==========

// HandleListSubscriptionTypes lists subscription types
func (s *RESTServer) HandleListSubscriptionTypes(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	activeOnly := r.URL.Query().Get("active") == "true"

	types, total, err := s.store.ListSubscriptionTypes(r.Context(), activeOnly, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscription_types": types,
		"total":              total,
		"limit":              limit,
		"offset":             offset,
	})
}

// HandleCreateSubscriptionType creates a new subscription type
func (s *RESTServer) HandleCreateSubscriptionType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name" validate:"required,min=2,max=100"`
		Description string            `json:"description"`
		Limits      models.Limits     `json:"limits"`
		Features    models.FeatureSet `json:"features"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := &models.SubscriptionType{
		Name:        req.Name,
		Description: req.Description,
		Limits:      req.Limits,
		Features:    req.Features,
		IsActive:    true,
	}

	if err := s.store.CreateSubscriptionType(r.Context(), st); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "subscription type already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, st)
}

// HandleGetSubscriptionType gets a subscription type by ID
func (s *RESTServer) HandleGetSubscriptionType(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid subscription type ID")
		return
	}

	st, err := s.store.GetSubscriptionType(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "subscription type not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, st)
}

// HandleUpdateSubscriptionType updates a subscription type
func (s *RESTServer) HandleUpdateSubscriptionType(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid subscription type ID")
		return
	}

	st, err := s.store.GetSubscriptionType(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "subscription type not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Name        *string            `json:"name"`
		Description *string            `json:"description"`
		Limits      *models.Limits     `json:"limits"`
		Features    *models.FeatureSet `json:"features"`
		IsActive    *bool              `json:"isActive"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		st.Name = *req.Name
	}
	if req.Description != nil {
		st.Description = *req.Description
	}
	if req.Limits != nil {
		st.Limits = *req.Limits
	}
	if req.Features != nil {
		st.Features = *req.Features
	}
	if req.IsActive != nil {
		st.IsActive = *req.IsActive
	}

	if err := s.store.UpdateSubscriptionType(r.Context(), st); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, st)
}
