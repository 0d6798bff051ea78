package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// ========== Campaign handlers ==========

// HandleListCampaigns lists campaigns
func (s *RESTServer) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	campaigns, total, err := s.store.ListCampaigns(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Usability is derived on read, not stored
	now := time.Now()
	items := make([]map[string]interface{}, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, campaignView(c, now))
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": items,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// HandleCreateCampaign creates a new campaign in draft status
func (s *RESTServer) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                     string              `json:"name" validate:"required,min=2,max=100"`
		Description              string              `json:"description"`
		StartDate                *time.Time          `json:"startDate"`
		EndDate                  *time.Time          `json:"endDate"`
		DiscountPercentage       float64             `json:"discountPercentage"`
		MaxSubscriptions         *int                `json:"maxSubscriptions"`
		TargetSubscriptionTypeID *uuid.UUID          `json:"targetSubscriptionTypeId"`
		AccessRights             models.AccessRights `json:"accessRights"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		s.respondError(w, http.StatusBadRequest, "endDate must not precede startDate")
		return
	}
	if req.MaxSubscriptions != nil && *req.MaxSubscriptions < 0 {
		s.respondError(w, http.StatusBadRequest, "maxSubscriptions must not be negative")
		return
	}

	if req.TargetSubscriptionTypeID != nil {
		if _, err := s.store.GetSubscriptionType(r.Context(), *req.TargetSubscriptionTypeID); err != nil {
			s.respondError(w, http.StatusBadRequest, "target subscription type not found")
			return
		}
	}

	campaign := &models.Campaign{
		Name:                     req.Name,
		Description:              req.Description,
		Status:                   models.CampaignStatusDraft,
		StartDate:                req.StartDate,
		EndDate:                  req.EndDate,
		DiscountPercentage:       req.DiscountPercentage,
		MaxSubscriptions:         req.MaxSubscriptions,
		TargetSubscriptionTypeID: req.TargetSubscriptionTypeID,
		AccessRights:             req.AccessRights,
	}

	if err := s.store.CreateCampaign(r.Context(), campaign); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, campaignView(campaign, time.Now()))
}

// HandleGetCampaign gets a campaign by ID
func (s *RESTServer) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid campaign ID")
		return
	}

	campaign, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "campaign not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, campaignView(campaign, time.Now()))
}

// HandleUpdateCampaign updates campaign metadata. Status changes go through
// the transition endpoint, enrollment counters through enrollment.
func (s *RESTServer) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid campaign ID")
		return
	}

	campaign, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "campaign not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Name               *string              `json:"name"`
		Description        *string              `json:"description"`
		StartDate          *time.Time           `json:"startDate"`
		EndDate            *time.Time           `json:"endDate"`
		DiscountPercentage *float64             `json:"discountPercentage"`
		MaxSubscriptions   *int                 `json:"maxSubscriptions"`
		AccessRights       *models.AccessRights `json:"accessRights"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Description != nil {
		campaign.Description = *req.Description
	}
	if req.StartDate != nil {
		campaign.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		campaign.EndDate = req.EndDate
	}
	if req.DiscountPercentage != nil {
		campaign.DiscountPercentage = *req.DiscountPercentage
	}
	if req.MaxSubscriptions != nil {
		campaign.MaxSubscriptions = req.MaxSubscriptions
	}
	if req.AccessRights != nil {
		campaign.AccessRights = *req.AccessRights
	}

	if campaign.StartDate != nil && campaign.EndDate != nil && campaign.EndDate.Before(*campaign.StartDate) {
		s.respondError(w, http.StatusBadRequest, "endDate must not precede startDate")
		return
	}

	if err := s.store.UpdateCampaign(r.Context(), campaign); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, campaignView(campaign, time.Now()))
}

// HandleTransitionCampaign moves a campaign through its lifecycle
func (s *RESTServer) HandleTransitionCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid campaign ID")
		return
	}

	var req struct {
		Status models.CampaignStatus `json:"status" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Status.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid campaign status")
		return
	}

	if err := s.engine.TransitionCampaign(r.Context(), id, req.Status); err != nil {
		s.respondEngineError(w, err)
		return
	}

	campaign, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, campaignView(campaign, time.Now()))
}

// campaignView decorates a campaign with its derived usability flag
func campaignView(c *models.Campaign, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":                       c.ID,
		"createdAt":                c.CreatedAt,
		"updatedAt":                c.UpdatedAt,
		"name":                     c.Name,
		"description":              c.Description,
		"status":                   c.Status,
		"startDate":                c.StartDate,
		"endDate":                  c.EndDate,
		"discountPercentage":       c.DiscountPercentage,
		"maxSubscriptions":         c.MaxSubscriptions,
		"currentSubscriptions":     c.CurrentSubscriptions,
		"targetSubscriptionTypeId": c.TargetSubscriptionTypeID,
		"accessRights":             c.AccessRights,
		"isCurrentlyUsable":        c.IsCurrentlyUsable(now),
	}
}
