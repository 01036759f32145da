package handler

import (
	"net/http"

	"campusdrive/internal/api/middleware"
	"campusdrive/internal/app/service"
	"campusdrive/internal/common"

	"github.com/go-chi/chi/v5"
)

type DriveHandler struct {
	drives  *service.DriveService
	results *service.ResultService
}

func NewDriveHandler(drives *service.DriveService, results *service.ResultService) *DriveHandler {
	return &DriveHandler{drives: drives, results: results}
}

func (h *DriveHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)

	r.Get("/{driveID}", h.getDrive)
	r.Get("/{driveID}/leaderboard", h.leaderboard)
	r.Post("/{driveID}/register", h.register)
	r.Delete("/{driveID}/register", h.withdraw)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly)
		admin.Post("/", h.createDrive)
		admin.Post("/{driveID}/open", h.openRegistration)
		admin.Post("/{driveID}/batches", h.createBatch)
	})
}

// RegisterBatchRoutes mounts the batch-scoped admin routes.
func (h *DriveHandler) RegisterBatchRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.AdminOnly)
	r.Post("/{batchID}/assign", h.assignBatch)
}

func (h *DriveHandler) createDrive(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDriveRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	drive, err := h.drives.CreateDrive(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, drive)
}

func (h *DriveHandler) getDrive(w http.ResponseWriter, r *http.Request) {
	drive, err := h.drives.GetDrive(r.Context(), chi.URLParam(r, "driveID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, drive)
}

func (h *DriveHandler) openRegistration(w http.ResponseWriter, r *http.Request) {
	drive, err := h.drives.OpenRegistration(r.Context(), chi.URLParam(r, "driveID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, drive)
}

func (h *DriveHandler) register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reg, err := h.drives.Register(r.Context(), userID, chi.URLParam(r, "driveID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, reg)
}

func (h *DriveHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.drives.Withdraw(r.Context(), userID, chi.URLParam(r, "driveID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DriveHandler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBatchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	batch, err := h.drives.CreateBatch(r.Context(), chi.URLParam(r, "driveID"), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, batch)
}

type assignBatchRequest struct {
	RegistrationID string `json:"registration_id" validate:"required,uuid"`
}

func (h *DriveHandler) assignBatch(w http.ResponseWriter, r *http.Request) {
	var req assignBatchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	reg, err := h.drives.AssignBatch(r.Context(), chi.URLParam(r, "batchID"), req.RegistrationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, reg)
}

func (h *DriveHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.Leaderboard(r.Context(), chi.URLParam(r, "driveID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, results)
}
