package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"washdesk/internal/mw"
	"washdesk/internal/service"
)

// NewRouter wires the screen API.
func NewRouter(sessions *service.SessionService, screens *service.Screens, backend service.Backend) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/session", LoginHandler(sessions))

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(sessions))

		r.Delete("/api/session", LogoutHandler(sessions, screens))
		r.Get("/api/assignments/{id}", AssignmentDetailHandler(backend))

		r.Route("/api/orders/{orderID}", func(r chi.Router) {
			r.Post("/screen", OpenScreenHandler(screens))
			r.Delete("/screen", CloseScreenHandler(screens))
			r.Get("/services", ListServicesHandler(screens))
			r.Get("/users", ListUsersHandler(screens))

			r.Post("/selection/service", SelectServiceHandler(screens))
			r.Post("/selection/user", SelectUserHandler(screens))
			r.Get("/selection/payout", PreviewPayoutHandler(screens))
			r.Post("/selection/salary", CreateSalaryRuleHandler(screens))

			r.Get("/assignments", ListAssignmentsHandler(screens))
			r.Get("/assignments/{id}", OrderAssignmentDetailHandler(screens))
			r.Delete("/assignments/{id}", RemoveAssignmentHandler(screens))
		})
	})

	return r
}
