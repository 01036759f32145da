package handler

import (
	"net/http"
	"strconv"

	"campusdrive/internal/api/middleware"
	"campusdrive/internal/app/service"
	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AttemptHandler struct {
	attempts    *service.AttemptService
	submissions *service.SubmissionService
	results     *service.ResultService
}

func NewAttemptHandler(
	attempts *service.AttemptService,
	submissions *service.SubmissionService,
	results *service.ResultService,
) *AttemptHandler {
	return &AttemptHandler{attempts: attempts, submissions: submissions, results: results}
}

func (h *AttemptHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/{mockDriveID}/start", h.start)
	r.Get("/{attemptID}/progress", h.progress)
	r.Post("/{attemptID}/sections/{section}/advance", h.advanceSection)
	r.Post("/{attemptID}/problems/{problemID}/submit", h.submit)
	r.Get("/{attemptID}/problems/{problemID}/submissions", h.submissionHistory)
	r.Post("/{attemptID}/complete", h.complete)
	r.Get("/{attemptID}/result", h.result)

	r.Group(func(graders chi.Router) {
		graders.Use(middleware.GraderOnly)
		graders.Post("/{attemptID}/sections/{section}/score", h.recordSectionScore)
	})
}

func (h *AttemptHandler) start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	attempt, err := h.attempts.Start(r.Context(), userID, chi.URLParam(r, "mockDriveID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, attempt)
}

func (h *AttemptHandler) progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	progress, err := h.attempts.GetProgress(r.Context(), userID, chi.URLParam(r, "attemptID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, progress)
}

type advanceSectionRequest struct {
	To string `json:"to" validate:"required"`
}

func (h *AttemptHandler) advanceSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req advanceSectionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	attempt, err := h.attempts.AdvanceSection(r.Context(), userID,
		chi.URLParam(r, "attemptID"), model.Section(chi.URLParam(r, "section")), model.Section(req.To))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, attempt)
}

func (h *AttemptHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.SubmitRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	resp, err := h.submissions.Submit(r.Context(), userID,
		chi.URLParam(r, "attemptID"), chi.URLParam(r, "problemID"), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AttemptHandler) submissionHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	subs, err := h.submissions.History(r.Context(), userID,
		chi.URLParam(r, "attemptID"), chi.URLParam(r, "problemID"), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

type completeRequest struct {
	Force bool `json:"force"`
}

func (h *AttemptHandler) complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	// Body is optional; absence means a normal (non-forced) complete.
	var req completeRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			respondServiceError(w, err)
			return
		}
	}

	result, err := h.attempts.Complete(r.Context(), userID, chi.URLParam(r, "attemptID"), req.Force)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *AttemptHandler) result(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.results.GetResult(r.Context(), userID, chi.URLParam(r, "attemptID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

type sectionScoreRequest struct {
	RawScore float64 `json:"raw_score" validate:"min=0"`
	MaxScore float64 `json:"max_score" validate:"required,gt=0"`
}

func (h *AttemptHandler) recordSectionScore(w http.ResponseWriter, r *http.Request) {
	var req sectionScoreRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	err := h.results.RecordSectionScore(r.Context(),
		chi.URLParam(r, "attemptID"), model.Section(chi.URLParam(r, "section")), req.RawScore, req.MaxScore)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
