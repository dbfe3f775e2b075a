package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	interviewHandler "github.com/prepdeck/backend/internal/handler/interview"
	resumeHandler "github.com/prepdeck/backend/internal/handler/resume"
	wsHandler "github.com/prepdeck/backend/internal/handler/ws"
	"github.com/prepdeck/backend/internal/store"

	interviewService "github.com/prepdeck/backend/internal/service/interview"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(st *store.Store, sessions *interviewService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	resumes := resumeHandler.New(st)
	interviews := interviewHandler.New(st)
	channel := wsHandler.New(sessions)

	r.Route("/api", func(api chi.Router) {
		resumes.RegisterRoutes(api)
		interviews.RegisterRoutes(api)
		channel.RegisterRoutes(api)
	})

	return r
}
