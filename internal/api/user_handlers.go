package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
	"github.com/fleet-server/fleet-server-pro/pkg/crypto"
)

// ========== User handlers ==========

// HandleListUsers lists the users of a company
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	limit, offset := pagination(r)

	users, total, err := s.store.ListUsers(r.Context(), companyID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleCreateUser creates a user under a company, reserving user capacity
func (s *RESTServer) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req struct {
		Email              string          `json:"email" validate:"required,email"`
		Password           string          `json:"password" validate:"required,min=8"`
		FirstName          string          `json:"firstName" validate:"required"`
		LastName           string          `json:"lastName" validate:"required"`
		RoleID             *uuid.UUID      `json:"roleId"`
		AssignedVehicleIDs models.UUIDList `json:"assignedVehicleIds"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := &models.User{
		CompanyID:          companyID,
		Email:              req.Email,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		PasswordHash:       hash,
		RoleID:             req.RoleID,
		AssignedVehicleIDs: req.AssignedVehicleIDs,
		IsActive:           true,
	}

	if err := s.engine.AddUser(r.Context(), user); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, user)
}

// HandleGetUser gets a user by ID
func (s *RESTServer) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleDeleteUser deletes a user and releases the seat
func (s *RESTServer) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := s.engine.RemoveUser(r.Context(), id); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "user deleted",
	})
}

// HandleAssignUserRole assigns an explicit role, or clears it so the user
// falls back to the company default
func (s *RESTServer) HandleAssignUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req struct {
		RoleID *uuid.UUID `json:"roleId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.AssignUserRole(r.Context(), id, req.RoleID); err != nil {
		s.respondEngineError(w, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleAssignVehicleScope replaces the user's assigned vehicle set
func (s *RESTServer) HandleAssignVehicleScope(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req struct {
		VehicleIDs models.UUIDList `json:"vehicleIds"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.AssignVehicleScope(r.Context(), id, req.VehicleIDs); err != nil {
		s.respondEngineError(w, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}
