package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hartfield/leadflow/internal/http/handlers"
	httpmiddleware "github.com/hartfield/leadflow/internal/http/middleware"
	"github.com/hartfield/leadflow/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Messages           *handlers.MessagesHandler
	Leads              *handlers.LeadsHandler
	Dashboard          *handlers.DashboardHandler
	Favorites          *handlers.FavoritesHandler
	Templates          *handlers.TemplatesHandler
	MetricsHandler     http.Handler
	AuthSecret         string
	CORSAllowedOrigins []string

	// SendLimiter throttles the send endpoints per client IP. Nil disables
	// throttling. The caller owns the limiter and stops it on shutdown.
	SendLimiter *httpmiddleware.RateLimiter
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.RoleJWT(cfg.AuthSecret))

		sendLimit := func(next http.Handler) http.Handler { return next }
		if cfg.SendLimiter != nil {
			sendLimit = cfg.SendLimiter.Middleware
		}

		api.Get("/inbox", cfg.Messages.GetInbox)

		api.Route("/leads", func(lr chi.Router) {
			lr.Get("/", cfg.Leads.ListLeads)
			lr.Route("/{leadID}", func(one chi.Router) {
				one.Get("/", cfg.Leads.GetLead)
				one.With(httpmiddleware.RequireElevated).Patch("/status", cfg.Leads.UpdateLeadStatus)
				one.Get("/messages", cfg.Messages.GetThread)
				one.With(sendLimit).Post("/messages", cfg.Messages.SendMessage)
			})
		})

		api.Route("/messages/{messageID}", func(mr chi.Router) {
			mr.With(sendLimit).Post("/reply", cfg.Messages.ReplyToMessage)
			mr.Post("/read", cfg.Messages.MarkMessageRead)
		})

		if cfg.Dashboard != nil {
			api.Route("/dashboard", func(dr chi.Router) {
				dr.Get("/counters", cfg.Dashboard.GetCounters)
				dr.With(httpmiddleware.RequireElevated).Post("/refresh", cfg.Dashboard.TriggerRefresh)
			})
		}

		if cfg.Templates != nil {
			api.Route("/templates", func(tr chi.Router) {
				tr.Get("/", cfg.Templates.ListTemplates)
				tr.With(httpmiddleware.RequireElevated).Post("/", cfg.Templates.PutTemplate)
				tr.Post("/{templateID}/preview", cfg.Templates.PreviewTemplate)
			})
		}

		if cfg.Favorites != nil {
			api.Route("/favorites", func(fr chi.Router) {
				fr.Get("/", cfg.Favorites.ListStarred)
				fr.Put("/{leadID}", cfg.Favorites.StarLead)
				fr.Delete("/{leadID}", cfg.Favorites.UnstarLead)
			})
			api.Post("/guest/read", cfg.Favorites.MarkGuestRead)
		}
	})

	return r
}
