package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ctxguard/ctxguard/internal/engine"
	"github.com/ctxguard/ctxguard/internal/handlers"
	mw2 "github.com/ctxguard/ctxguard/internal/mw"
	"github.com/ctxguard/ctxguard/internal/version"
)

type Options struct {
	EnableCORS bool
}

type Deps struct {
	Engine *engine.Engine
}

func BuildRouter(d Deps, opts Options, mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	if os.Getenv("CTXGUARD_ENV") == "local" || os.Getenv("CTXGUARD_ENV") == "dev" {
		r.Use(mw2.NoStore)
	}

	// baseline
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if opts.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	for _, m := range mw {
		r.Use(m)
	}

	// tracing + logger
	r.Use(mw2.Trace())
	r.Use(mw2.Logger(mw2.LogOpts{
		CheckSkipEvery: 4, // sample /permissions/check
		SkipPaths:      []string{"/healthz", "/version"},
	}))

	perms := handlers.NewPermissionHandler(d.Engine)
	consents := handlers.NewConsentHandler(d.Engine)
	admin := handlers.NewAdminHandler(d.Engine)

	r.Get("/healthz", healthCheckHandler)
	r.Get("/version", handlers.VersionHandler)

	r.Route("/permissions", func(pr chi.Router) {
		pr.Post("/", perms.Grant)
		pr.Post("/check", perms.Check)
		pr.Post("/revoke-all", perms.RevokeAll)
		pr.Delete("/{id}", perms.Revoke)
	})

	r.Route("/consents", func(cr chi.Router) {
		cr.Post("/", consents.Request)
		cr.Post("/check", consents.HasValid)
		cr.Delete("/{id}", consents.Revoke)
	})

	r.Route("/users/{userID}", func(ur chi.Router) {
		ur.Get("/permissions", perms.ListForUser)
		ur.Get("/permissions/{resourceType}", perms.ListForResource)
		ur.Get("/consents", consents.ListForUser)
		ur.Get("/consents/history", consents.History)
		ur.Get("/audit", admin.AuditLog)
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Get("/stats", admin.Stats)
		ar.Post("/cleanup", admin.Cleanup)
		ar.Post("/snapshot", admin.Snapshot)
	})

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}
