package api

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", h.Ping)
	r.Get("/version", h.Version)
	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/authorize", h.Authorize)
		r.Get("/blobs/*", h.GetBlob)
		r.Put("/blobs/*", h.PutBlob)
	})
}
