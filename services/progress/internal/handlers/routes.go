package handlers

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/services/progress/internal/service"
)

// Mount registers the progress routes behind bearer authentication.
func Mount(r chi.Router, svc *service.Service, verifier auth.JWTVerifier, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/progress/{content_id}", GetProgress(svc, log))
		r.Post("/progress/{content_id}", SaveProgress(svc, log))
	})
}
