package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/model"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type createAppointmentRequest struct {
	ClinicID   string `json:"clinic_id"`
	RoomID     string `json:"room_id"`
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type appointmentResponse struct {
	ID         string `json:"id"`
	ClinicID   string `json:"clinic_id"`
	RoomID     string `json:"room_id"`
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id,omitempty"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toResponse(appt model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         appt.ID,
		ClinicID:   appt.ClinicID,
		RoomID:     appt.RoomID,
		PatientID:  appt.PatientID,
		ProviderID: appt.ProviderID,
		StartTime:  appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:    appt.EndTime.UTC().Format(time.RFC3339),
		Status:     string(appt.Status),
		CreatedAt:  appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing caller"})
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	req.ClinicID = strings.TrimSpace(req.ClinicID)
	req.RoomID = strings.TrimSpace(req.RoomID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.ProviderID = strings.TrimSpace(req.ProviderID)

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid start_time"})
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid end_time"})
		return
	}

	// Reference ids are uuids on the wire; reject malformed ones here so
	// they never reach a store query.
	for _, id := range []string{req.ClinicID, req.RoomID, req.PatientID} {
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, booking.ErrInvalidReference)
			return
		}
	}
	if req.ProviderID != "" {
		if _, err := uuid.Parse(req.ProviderID); err != nil {
			writeError(w, booking.ErrInvalidReference)
			return
		}
	}

	appt, err := h.svc.Create(r.Context(), booking.Candidate{
		ClinicID:   req.ClinicID,
		RoomID:     req.RoomID,
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		StartTime:  startTime,
		EndTime:    endTime,
	}, caller)
	if err != nil {
		h.logError(r, "create appointment failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing caller"})
		return
	}

	appts, err := h.svc.List(r.Context(), caller)
	if err != nil {
		h.logError(r, "list appointments failed", err)
		writeError(w, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		out = append(out, toResponse(appt))
	}
	writeJSON(w, http.StatusOK, out)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing caller"})
		return
	}
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, booking.ErrNotFound)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), id, strings.TrimSpace(req.Status), caller)
	if err != nil {
		h.logError(r, "update status failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing caller"})
		return
	}
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, booking.ErrNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), id, caller); err != nil {
		h.logError(r, "delete appointment failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slots lists open booking slots for a room. Window bounds are required;
// duration and step default to 30 minutes.
func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if _, ok := CallerFrom(r.Context()); !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing caller"})
		return
	}

	q := r.URL.Query()
	clinicID := strings.TrimSpace(q.Get("clinic_id"))
	roomID := strings.TrimSpace(q.Get("room_id"))
	for _, id := range []string{clinicID, roomID} {
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, booking.ErrInvalidReference)
			return
		}
	}

	windowStart, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid from"})
		return
	}
	windowEnd, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid to"})
		return
	}

	duration := 30 * time.Minute
	if raw := q.Get("duration"); raw != "" {
		duration, err = time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid duration"})
			return
		}
	}
	step := duration
	if raw := q.Get("step"); raw != "" {
		step, err = time.ParseDuration(raw)
		if err != nil || step <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid step"})
			return
		}
	}

	slots, err := h.svc.FreeSlots(r.Context(), clinicID, roomID, windowStart, windowEnd, duration, step)
	if err != nil {
		h.logError(r, "free slots failed", err)
		writeError(w, err)
		return
	}

	out := make([]slotItem, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotItem{
			StartTime: slot.Start.UTC().Format(time.RFC3339),
			EndTime:   slot.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AppointmentHandler) logError(r *http.Request, msg string, err error) {
	h.logger.Error(msg, "method", r.Method, "path", r.URL.Path, "err", err)
}
