package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ravelon/internal/domain"
	"ravelon/internal/http/handlers"
	"ravelon/internal/infra/geoip"
	"ravelon/internal/middleware"
)

// Options configures the middleware stack around the handlers.
type Options struct {
	Logger        zerolog.Logger
	JWTSecret     string
	CORSOrigins   []string
	DefaultZone   *time.Location
	Locator       geoip.Locator
	SecureCookies bool
	// ActionLimit throttles the action, gate and reward endpoints. Nil disables it.
	ActionLimit func(http.Handler) http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	locality := middleware.LocalityOptions{DefaultZone: opts.DefaultZone}
	if opts.Locator != nil {
		locality.Country = opts.Locator.CountryCode
		locality.Zone = opts.Locator.TimeZone
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.Locality(locality),
	)

	r.Get("/metrics", app.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.APISpec)
		r.Get("/docs", app.APIDocs)
		r.Get("/plans", app.ListPlans)

		r.Post("/auth/login", app.Login)
		r.Post("/auth/google", app.LoginGoogle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Device(opts.SecureCookies), middleware.OptionalAuth(opts.JWTSecret))

			r.Get("/credits", app.Credits)
			r.Get("/gate", app.GateStatus)

			r.Group(func(r chi.Router) {
				if opts.ActionLimit != nil {
					r.Use(opts.ActionLimit)
				}
				r.Post("/actions/enhance", app.Enhance)
				r.Post("/actions/upload", app.Upload)
				r.Post("/actions/download", app.Download)
				r.Post("/gate/complete", app.GateComplete)
				r.Delete("/gate", app.GateCancel)
				r.Post("/rewards/ad", app.WatchAd)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/me", app.Me)
				r.Get("/me/records", app.ListRecords)
				r.Get("/me/records/export", app.ExportRecords)
				r.Post("/plans/{plan_id}/subscribe", app.Subscribe)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(domain.RoleAdmin)))
				r.Get("/principals", app.AdminPrincipals)
				r.Post("/principals/{id}/credits", app.AdminGrant)
				r.Delete("/principals/{id}", app.AdminRemove)
				r.Get("/stats", app.AdminStats)
			})
		})
	})

	return r
}
