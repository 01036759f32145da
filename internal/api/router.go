package api

import (
	"net/http"
	"time"

	"campusdrive/internal/api/handler"
	"campusdrive/internal/app/service"
	"campusdrive/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	driveService *service.DriveService,
	attemptService *service.AttemptService,
	submissionService *service.SubmissionService,
	resultService *service.ResultService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	// Code execution calls are the slow path; the timeout must outlive the
	// executor's own request timeout.
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies the bearer token and puts claims in context. Token issuance is
	// the identity service's job.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		driveHandler := handler.NewDriveHandler(driveService, resultService)
		v1.Route("/drives", driveHandler.RegisterRoutes)
		v1.Route("/batches", driveHandler.RegisterBatchRoutes)

		attemptHandler := handler.NewAttemptHandler(attemptService, submissionService, resultService)
		v1.Route("/attempts", attemptHandler.RegisterRoutes)
	})

	return r
}
