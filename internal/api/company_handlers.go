package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// ========== Company handlers ==========

// HandleListCompanies lists companies
func (s *RESTServer) HandleListCompanies(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	companies, total, err := s.store.ListCompanies(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// HandleCreateCompany creates a new company on a subscription type
func (s *RESTServer) HandleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               string    `json:"name" validate:"required,min=2,max=100"`
		SubscriptionTypeID uuid.UUID `json:"subscriptionTypeId" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	company := &models.Company{
		Name:               req.Name,
		SubscriptionTypeID: req.SubscriptionTypeID,
		Status:             models.CompanyStatusActive,
	}

	if err := s.engine.CreateCompany(r.Context(), company); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, company)
}

// HandleGetCompany gets a company by ID
func (s *RESTServer) HandleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	company, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "company not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, company)
}

// HandleAssignSubscription switches a company to another subscription type.
// Existing counters are kept as-is; over-limit resources are grandfathered
// and only new reservations are checked against the new limits.
func (s *RESTServer) HandleAssignSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req struct {
		SubscriptionTypeID uuid.UUID `json:"subscriptionTypeId" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.AssignSubscription(r.Context(), id, req.SubscriptionTypeID); err != nil {
		s.respondEngineError(w, err)
		return
	}

	company, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, company)
}

// ========== Campaign enrollment handlers ==========

// HandleEnrollCampaign enrolls a company into a campaign
func (s *RESTServer) HandleEnrollCampaign(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req struct {
		CampaignID uuid.UUID `json:"campaignId" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.EnrollCampaign(r.Context(), companyID, req.CampaignID); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"companyId":  companyID,
		"campaignId": req.CampaignID,
		"enrolled":   true,
	})
}

// HandleUnenrollCampaign removes a company from its campaign
func (s *RESTServer) HandleUnenrollCampaign(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	if err := s.engine.UnenrollCampaign(r.Context(), companyID); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"companyId": companyID,
		"enrolled":  false,
	})
}

// ========== Capacity handlers ==========

// HandleReserveCapacity reserves or releases capacity for a resource kind.
// A negative delta releases previously reserved capacity.
func (s *RESTServer) HandleReserveCapacity(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	kind := models.ResourceKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid resource kind")
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Delta == 0 {
		req.Delta = 1
	}

	if err := s.engine.CheckAndReserveCapacity(r.Context(), companyID, kind, req.Delta); err != nil {
		s.respondEngineError(w, err)
		return
	}

	company, err := s.store.GetCompany(r.Context(), companyID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"companyId": companyID,
		"kind":      kind,
		"current":   company.CounterFor(kind),
	})
}
