package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// ========== Role handlers ==========

// HandleListRoles lists the roles of a company
func (s *RESTServer) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	roles, err := s.store.ListRoles(r.Context(), &companyID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"roles": roles,
		"total": len(roles),
	})
}

// HandleCreateRole creates a custom role for a company
func (s *RESTServer) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req struct {
		Name        string   `json:"name" validate:"required,min=2,max=100"`
		Description string   `json:"description"`
		Permissions []string `json:"permissions"`
		Wildcard    bool     `json:"wildcard"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	permissions := models.Explicit(req.Permissions...)
	if req.Wildcard {
		permissions = models.Wildcard()
	}

	role := &models.Role{
		CompanyID:   &companyID,
		Name:        req.Name,
		Description: req.Description,
		Type:        models.RoleTypeCustom,
		Permissions: permissions,
	}

	if err := s.engine.CreateRole(r.Context(), role); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, role)
}

// HandleGetRole gets a role by ID
func (s *RESTServer) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	role, err := s.store.GetRole(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "role not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, role)
}

// HandleUpdateRole updates a custom role
func (s *RESTServer) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	role, err := s.store.GetRole(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "role not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Permissions *[]string `json:"permissions"`
		Wildcard    *bool     `json:"wildcard"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Permissions != nil {
		role.Permissions = models.Explicit(*req.Permissions...)
	}
	if req.Wildcard != nil && *req.Wildcard {
		role.Permissions = models.Wildcard()
	}

	if err := s.engine.UpdateRole(r.Context(), role); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, role)
}

// HandleDeleteRole deletes an unused custom role
func (s *RESTServer) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	if err := s.engine.DeleteRole(r.Context(), id); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "role deleted",
	})
}

// HandleSetDefaultRole flips the company default role
func (s *RESTServer) HandleSetDefaultRole(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req struct {
		RoleID uuid.UUID `json:"roleId" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.SetDefaultRole(r.Context(), companyID, req.RoleID); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"companyId":     companyID,
		"defaultRoleId": req.RoleID,
	})
}
