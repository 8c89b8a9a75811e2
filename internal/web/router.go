package web

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter wires the full HTTP surface.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Printf("REQUEST: %s %s", req.Method, req.URL.Path)
			next.ServeHTTP(w, req)
		})
	})
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1/story", func(r chi.Router) {
		r.Post("/create", h.CreateStory)
		r.Post("/continue", h.ContinueStory)
		r.Post("/fork", h.ForkStory)
		r.Get("/{id}", h.GetStory)
	})

	r.Get("/ws/story/stream", h.StreamTurn)

	return r
}
