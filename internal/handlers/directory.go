package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/storage"
)

// DirectoryHandler serves the clinic, room and provider records that
// appointments reference. Reads are open to any authenticated caller;
// writes need staff or admin.
type DirectoryHandler struct {
	repo   *storage.DirectoryRepository
	logger *slog.Logger
}

func NewDirectoryHandler(repo *storage.DirectoryRepository, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{repo: repo, logger: logger}
}

func (h *DirectoryHandler) requireWriter(w http.ResponseWriter, r *http.Request) bool {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing caller"})
		return false
	}
	if caller.Role != booking.RoleStaff && caller.Role != booking.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return false
	}
	return true
}

type clinicRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type clinicResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toClinicResponse(c storage.Clinic) clinicResponse {
	return clinicResponse{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DirectoryHandler) CreateClinic(w http.ResponseWriter, r *http.Request) {
	if !h.requireWriter(w, r) {
		return
	}
	var req clinicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
		return
	}

	clinic := storage.Clinic{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
	}
	if err := h.repo.CreateClinic(r.Context(), clinic); err != nil {
		h.logger.Error("clinic create failed", "err", err)
		writeError(w, err)
		return
	}
	clinic.CreatedAt = time.Now().UTC()
	writeJSON(w, http.StatusCreated, toClinicResponse(clinic))
}

func (h *DirectoryHandler) ListClinics(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.repo.ListClinics(r.Context())
	if err != nil {
		h.logger.Error("clinic list failed", "err", err)
		writeError(w, err)
		return
	}
	out := make([]clinicResponse, 0, len(clinics))
	for _, c := range clinics {
		out = append(out, toClinicResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) GetClinic(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "clinic not found"})
		return
	}
	clinic, err := h.repo.GetClinic(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "clinic not found"})
			return
		}
		h.logger.Error("clinic get failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClinicResponse(clinic))
}

type roomRequest struct {
	ClinicID string `json:"clinic_id"`
	Name     string `json:"name"`
	RoomType string `json:"room_type"`
}

type roomResponse struct {
	ID        string `json:"id"`
	ClinicID  string `json:"clinic_id"`
	Name      string `json:"name"`
	RoomType  string `json:"room_type,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toRoomResponse(room storage.Room) roomResponse {
	return roomResponse{
		ID:        room.ID,
		ClinicID:  room.ClinicID,
		Name:      room.Name,
		RoomType:  room.RoomType,
		CreatedAt: room.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DirectoryHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if !h.requireWriter(w, r) {
		return
	}
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	req.ClinicID = strings.TrimSpace(req.ClinicID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ClinicID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "clinic_id and name are required"})
		return
	}
	if _, err := uuid.Parse(req.ClinicID); err != nil {
		writeError(w, booking.ErrInvalidReference)
		return
	}

	room := storage.Room{
		ID:       uuid.NewString(),
		ClinicID: req.ClinicID,
		Name:     req.Name,
		RoomType: strings.TrimSpace(req.RoomType),
	}
	if err := h.repo.CreateRoom(r.Context(), room); err != nil {
		if err != booking.ErrInvalidReference {
			h.logger.Error("room create failed", "err", err)
		}
		writeError(w, err)
		return
	}
	room.CreatedAt = time.Now().UTC()
	writeJSON(w, http.StatusCreated, toRoomResponse(room))
}

func (h *DirectoryHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.repo.ListRooms(r.Context(), strings.TrimSpace(r.URL.Query().Get("clinic_id")))
	if err != nil {
		h.logger.Error("room list failed", "err", err)
		writeError(w, err)
		return
	}
	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomResponse(room))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "room not found"})
		return
	}
	room, err := h.repo.GetRoom(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "room not found"})
			return
		}
		h.logger.Error("room get failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(room))
}

type providerRequest struct {
	ClinicID  string `json:"clinic_id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type providerResponse struct {
	ID        string `json:"id"`
	ClinicID  string `json:"clinic_id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toProviderResponse(p storage.Provider) providerResponse {
	return providerResponse{
		ID:        p.ID,
		ClinicID:  p.ClinicID,
		Name:      p.Name,
		Specialty: p.Specialty,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DirectoryHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	if !h.requireWriter(w, r) {
		return
	}
	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	req.ClinicID = strings.TrimSpace(req.ClinicID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.ClinicID == "" || req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "clinic_id, name and email are required"})
		return
	}
	if _, err := uuid.Parse(req.ClinicID); err != nil {
		writeError(w, booking.ErrInvalidReference)
		return
	}

	provider := storage.Provider{
		ID:        uuid.NewString(),
		ClinicID:  req.ClinicID,
		Name:      req.Name,
		Specialty: strings.TrimSpace(req.Specialty),
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
	}
	if err := h.repo.CreateProvider(r.Context(), provider); err != nil {
		if err != booking.ErrInvalidReference {
			h.logger.Error("provider create failed", "err", err)
		}
		writeError(w, err)
		return
	}
	provider.CreatedAt = time.Now().UTC()
	writeJSON(w, http.StatusCreated, toProviderResponse(provider))
}

func (h *DirectoryHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.repo.ListProviders(r.Context(), strings.TrimSpace(r.URL.Query().Get("clinic_id")))
	if err != nil {
		h.logger.Error("provider list failed", "err", err)
		writeError(w, err)
		return
	}
	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, toProviderResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "provider not found"})
		return
	}
	provider, err := h.repo.GetProvider(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "provider not found"})
			return
		}
		h.logger.Error("provider get failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(provider))
}
