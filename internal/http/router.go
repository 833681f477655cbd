package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig bundles the handlers and middleware the router serves.
type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	WorkOrders *WorkOrderHandler
	Timer      *TimerHandler
	// Middleware wraps every route. Session enforcement goes in
	// SessionMiddleware so login stays reachable without a token.
	Middleware        []func(http.Handler) http.Handler
	SessionMiddleware func(http.Handler) http.Handler
}

// NewRouter assembles the HTTP surface. Everything except POST /login sits
// behind the session middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if cfg.Auth != nil {
		r.Post("/login", cfg.Auth.CreateSession)
	}

	r.Group(func(r chi.Router) {
		if cfg.SessionMiddleware != nil {
			r.Use(cfg.SessionMiddleware)
		}

		if cfg.Auth != nil {
			r.Delete("/sessions/current", cfg.Auth.DeleteCurrentSession)
		}

		if cfg.Timer != nil {
			r.Route("/timer", func(r chi.Router) {
				r.Post("/start", cfg.Timer.Start)
				r.Post("/pause", cfg.Timer.Pause)
				r.Post("/resume", cfg.Timer.Resume)
				r.Post("/stop", cfg.Timer.Stop)
				r.Post("/switch", cfg.Timer.Switch)
				r.Get("/active", cfg.Timer.Active)
			})
		}

		if cfg.WorkOrders != nil {
			r.Route("/work-orders", func(r chi.Router) {
				r.Get("/", cfg.WorkOrders.List)
				r.Post("/", cfg.WorkOrders.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.WorkOrders.Get)
					r.Put("/", cfg.WorkOrders.Update)
					r.Patch("/", cfg.WorkOrders.Patch)
					r.Delete("/", cfg.WorkOrders.Delete)
					r.Post("/submit", cfg.WorkOrders.Submit)
					r.Post("/approve", cfg.WorkOrders.Approve)
					r.Post("/reject", cfg.WorkOrders.Reject)
					r.Post("/start", cfg.WorkOrders.Start)
				})
			})
		}

		if cfg.Users != nil {
			r.Route("/users", func(r chi.Router) {
				r.Get("/", cfg.Users.List)
				r.Post("/", cfg.Users.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Users.Get)
					r.Put("/", cfg.Users.Update)
					r.Delete("/", cfg.Users.Delete)
				})
			})
		}
	})

	return r
}
