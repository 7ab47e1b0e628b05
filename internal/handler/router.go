package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/traintrack-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса учёта тренировок.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/auth/sign_up", h.SignUp)
		r.Post("/auth/sign_in", h.SignIn)

		r.Get("/trainings", h.ListTrainings)
		r.Get("/trainings/{id}", h.GetTraining)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Delete("/auth/sign_out", h.SignOut)
			r.Get("/auth/me", h.Me)

			r.Get("/training_records", h.ListRecords)
			r.Post("/training_records", h.CreateRecord)
			r.Get("/training_records/{id}", h.GetRecord)
			r.Patch("/training_records/{id}", h.UpdateRecord)
			r.Delete("/training_records/{id}", h.DeleteRecord)

			r.Get("/users/dashboard_stats", h.DashboardStats)
			r.Get("/users/training_trends", h.TrainingTrends)

			r.Get("/rankings/points", h.PointsRanking)
			r.Get("/rankings/streaks", h.StreaksRanking)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.AdminOnly)

			r.Get("/admin/trainings", h.AdminListTrainings)
			r.Post("/admin/trainings", h.AdminCreateTraining)
			r.Get("/admin/trainings/{id}", h.AdminGetTraining)
			r.Patch("/admin/trainings/{id}", h.AdminUpdateTraining)
			r.Delete("/admin/trainings/{id}", h.AdminDeleteTraining)
		})
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
