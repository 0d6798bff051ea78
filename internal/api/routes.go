package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Entitlement resolution
		r.Get("/entitlements/{company_id}/{user_id}", s.HandleResolveEntitlement)

		// Subscription types (platform staff)
		r.Route("/subscription-types", func(r chi.Router) {
			r.Get("/", s.HandleListSubscriptionTypes)
			r.Post("/", s.HandleCreateSubscriptionType)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetSubscriptionType)
				r.Put("/", s.HandleUpdateSubscriptionType)
			})
		})

		// Campaigns
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.HandleListCampaigns)
			r.Post("/", s.HandleCreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetCampaign)
				r.Put("/", s.HandleUpdateCampaign)
				r.Post("/transition", s.HandleTransitionCampaign)
			})
		})

		// Companies
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", s.HandleListCompanies)
			r.Post("/", s.HandleCreateCompany)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetCompany)
				r.Put("/subscription", s.HandleAssignSubscription)

				r.Post("/campaign", s.HandleEnrollCampaign)
				r.Delete("/campaign", s.HandleUnenrollCampaign)

				r.Post("/capacity/{kind}", s.HandleReserveCapacity)

				r.Route("/roles", func(r chi.Router) {
					r.Get("/", s.HandleListRoles)
					r.Post("/", s.HandleCreateRole)
					r.Put("/default", s.HandleSetDefaultRole)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", s.HandleListUsers)
					r.Post("/", s.HandleCreateUser)
				})

				r.Route("/vehicles", func(r chi.Router) {
					r.Get("/", s.HandleListVehicles)
					r.Post("/", s.HandleCreateVehicle)
				})
			})
		})

		// Roles
		r.Route("/roles", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetRole)
				r.Put("/", s.HandleUpdateRole)
				r.Delete("/", s.HandleDeleteRole)
			})
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Delete("/", s.HandleDeleteUser)
				r.Put("/role", s.HandleAssignUserRole)
				r.Put("/vehicles", s.HandleAssignVehicleScope)
			})
		})

		// Vehicles
		r.Route("/vehicles", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetVehicle)
				r.Delete("/", s.HandleDeleteVehicle)
			})
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.HandleListEvents)
		})
	})
}
