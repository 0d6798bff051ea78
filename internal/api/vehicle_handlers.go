package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// ========== Vehicle handlers ==========

// HandleListVehicles lists the vehicles of a company
func (s *RESTServer) HandleListVehicles(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	limit, offset := pagination(r)

	vehicles, total, err := s.store.ListVehicles(r.Context(), companyID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// HandleCreateVehicle registers a vehicle, reserving vehicle capacity
func (s *RESTServer) HandleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req struct {
		PlateNumber  string `json:"plateNumber" validate:"required,min=2,max=20"`
		Make         string `json:"make"`
		Model        string `json:"model"`
		Year         int    `json:"year"`
		HasGPSDevice bool   `json:"hasGpsDevice"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	vehicle := &models.Vehicle{
		CompanyID:    companyID,
		PlateNumber:  req.PlateNumber,
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
		HasGPSDevice: req.HasGPSDevice,
		Status:       "active",
	}

	if err := s.engine.AddVehicle(r.Context(), vehicle); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, vehicle)
}

// HandleGetVehicle gets a vehicle by ID
func (s *RESTServer) HandleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	vehicle, err := s.store.GetVehicle(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, vehicle)
}

// HandleDeleteVehicle removes a vehicle, releases capacity and prunes the
// vehicle from user scopes
func (s *RESTServer) HandleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	if err := s.engine.RemoveVehicle(r.Context(), id); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "vehicle deleted",
	})
}
