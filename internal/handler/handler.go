// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/identity"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AttendanceHandler holds all HTTP handlers for the attendance API.
type AttendanceHandler struct {
	svc *service.Services
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(svc *service.Services) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

// NewRouter builds the full router: global middleware, health check and API routes.
func NewRouter(svc *service.Services, tokens *identity.Tokens) http.Handler {
	h := NewAttendanceHandler(svc)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS)
	r.Use(Authenticate(tokens))

	r.Get("/health", HealthCheck)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateOrUpdateSession)
		r.Get("/{id}", h.GetSession)
		r.Post("/{id}/lock", h.LockSession)
		r.Get("/{id}/summary", h.GetSummary)
	})
	r.Route("/attendance", func(r chi.Router) {
		r.Post("/", h.SubmitAttendanceEvent)
		r.Get("/{id}", h.GetAttendanceEvent)
	})
	r.Route("/admin-operations", func(r chi.Router) {
		r.Post("/", h.SubmitAdminOperation)
		r.Get("/{id}", h.GetAdminOperation)
	})
	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps service and repository errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "administrator privilege required")
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

// CreateOrUpdateSession handles POST /sessions
// Upserts a session (administrators only) and returns its id.
func (h *AttendanceHandler) CreateOrUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := h.svc.Admin.CreateOrUpdateSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, model.SessionResponse{SessionID: id})
}

// GetSession handles GET /sessions/{id}
func (h *AttendanceHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Admin.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// LockSession handles POST /sessions/{id}/lock
// Sets or clears the session's lock flag (administrators only).
func (h *AttendanceHandler) LockSession(w http.ResponseWriter, r *http.Request) {
	var req model.LockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.Admin.LockSession(r.Context(), chi.URLParam(r, "id"), bool(req.Locked)); err != nil {
		writeServiceError(w, err, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetSummary handles GET /sessions/{id}/summary
// Returns the live counters of a session.
func (h *AttendanceHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Admin.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "summary not found")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ─── Attendance ───────────────────────────────────────────────────────────────

// SubmitAttendanceEvent handles POST /attendance
// Any caller may submit; the response reports the admission decision.
func (h *AttendanceHandler) SubmitAttendanceEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.AttendanceEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	key, outcome, err := h.svc.Attendance.SubmitAttendanceEvent(r.Context(), ev)
	if err != nil {
		if key == "" {
			writeServiceError(w, err, "")
			return
		}
		// Stored but not processed; re-delivery will pick it up.
		log.Printf("attendance %s admission failed: %v", key, err)
		writeJSON(w, http.StatusAccepted, model.SubmissionResponse{ID: key})
		return
	}

	writeJSON(w, http.StatusAccepted, model.SubmissionResponse{
		ID:       key,
		Decision: string(outcome.Decision),
		Reason:   outcome.Reason,
	})
}

// GetAttendanceEvent handles GET /attendance/{id}
func (h *AttendanceHandler) GetAttendanceEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.Attendance.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "attendance event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// ─── Admin operations ─────────────────────────────────────────────────────────

// SubmitAdminOperation handles POST /admin-operations
// The requester is always the authenticated caller; privilege is checked
// again by the audit pipeline, not here.
func (h *AttendanceHandler) SubmitAdminOperation(w http.ResponseWriter, r *http.Request) {
	caller := identity.CallerFrom(r.Context())
	if caller.Anonymous() {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var op model.AdminOperation
	if err := decodeJSON(w, r, &op); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	op.RequesterID = caller.UserID

	key, status, err := h.svc.Audit.SubmitAdminOperation(r.Context(), op)
	if err != nil {
		if key == "" {
			writeServiceError(w, err, "")
			return
		}
		log.Printf("admin operation %s resolution failed: %v", key, err)
	}

	writeJSON(w, http.StatusAccepted, model.SubmissionResponse{ID: key, Status: string(status)})
}

// GetAdminOperation handles GET /admin-operations/{id}
func (h *AttendanceHandler) GetAdminOperation(w http.ResponseWriter, r *http.Request) {
	op, err := h.svc.Audit.GetOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "admin operation not found")
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
