package router

import (
	"net/http"

	"listing-images/internal/http-server/handler/asset"
	"listing-images/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	AssetHandler *asset.AssetHandler
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				next.ServeHTTP(w, r)
			})
		})

		r.Route("/listings/{listingID}/images", func(r chi.Router) {
			r.Post("/", h.AssetHandler.Upload)
			r.Get("/", h.AssetHandler.List)
			r.Put("/order", h.AssetHandler.Reorder)
		})

		r.Route("/images/{id}", func(r chi.Router) {
			r.Patch("/primary", h.AssetHandler.SetPrimary)
			r.Delete("/", h.AssetHandler.Delete)
			r.Get("/url", h.AssetHandler.ResolveURL)
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		})
	})

	return r
}
