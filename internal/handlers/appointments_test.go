package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/storage"
)

const (
	testClinicID  = "11111111-1111-1111-1111-111111111111"
	testRoomID    = "22222222-2222-2222-2222-222222222222"
	testPatientID = "33333333-3333-3333-3333-333333333333"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(storage.NewMemoryStore(), booking.NewStatusMachine(booking.DefaultTransitions), logger)
	h := NewAppointmentHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /appointments", h.Create)
	mux.HandleFunc("GET /appointments", h.List)
	mux.HandleFunc("GET /appointments/slots", h.Slots)
	mux.HandleFunc("PUT /appointments/{id}/status", h.UpdateStatus)
	mux.HandleFunc("DELETE /appointments/{id}", h.Delete)
	return mux
}

func doAs(t *testing.T, mux *http.ServeMux, caller booking.Caller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(ContextWithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func futureHour(h int) string {
	return time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour).Add(time.Duration(h) * time.Hour).Format(time.RFC3339)
}

func createBody(startHour, endHour int) string {
	b, _ := json.Marshal(map[string]string{
		"clinic_id":  testClinicID,
		"room_id":    testRoomID,
		"patient_id": testPatientID,
		"start_time": futureHour(startHour),
		"end_time":   futureHour(endHour),
	})
	return string(b)
}

var (
	patientCaller = booking.Caller{ID: testPatientID, Role: booking.RolePatient}
	staffCaller   = booking.Caller{ID: "staff-1", Role: booking.RoleStaff}
)

func TestCreateAppointmentEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(9, 10))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.ID == "" || resp.Status != "booked" {
		t.Fatalf("response = %+v", resp)
	}

	// The same slot again conflicts.
	rec = doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(9, 10))
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflict status = %d, want 409", rec.Code)
	}

	// Back-to-back booking is fine.
	rec = doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(10, 11))
	if rec.Code != http.StatusCreated {
		t.Fatalf("touching status = %d, want 201", rec.Code)
	}
}

func TestCreateAppointmentBadRequests(t *testing.T) {
	mux := newTestMux(t)

	rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", rec.Code)
	}

	rec = doAs(t, mux, patientCaller, http.MethodPost, "/appointments",
		`{"clinic_id":"`+testClinicID+`","room_id":"`+testRoomID+`","patient_id":"`+testPatientID+`","start_time":"tomorrow","end_time":"later"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad time status = %d, want 400", rec.Code)
	}

	// Inverted interval.
	rec = doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(10, 9))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted interval status = %d, want 400", rec.Code)
	}
}

func TestCreateAppointmentRejectsMalformedIDs(t *testing.T) {
	mux := newTestMux(t)

	body := func(clinic, room, patient, provider string) string {
		b, _ := json.Marshal(map[string]string{
			"clinic_id":   clinic,
			"room_id":     room,
			"patient_id":  patient,
			"provider_id": provider,
			"start_time":  futureHour(9),
			"end_time":    futureHour(10),
		})
		return string(b)
	}

	cases := []struct {
		name string
		body string
	}{
		{"clinic id", body("not-a-uuid", testRoomID, testPatientID, "")},
		{"room id", body(testClinicID, "room-1", testPatientID, "")},
		{"patient id", body(testClinicID, testRoomID, "42", "")},
		{"provider id", body(testClinicID, testRoomID, testPatientID, "doc")},
		{"empty clinic id", body("", testRoomID, testPatientID, "")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(9, 10))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doAs(t, mux, patientCaller, http.MethodPut, "/appointments/"+created.ID+"/status", `{"status":"confirmed"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient update status = %d, want 403", rec.Code)
	}

	rec = doAs(t, mux, staffCaller, http.MethodPut, "/appointments/"+created.ID+"/status", `{"status":"archived"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", rec.Code)
	}

	rec = doAs(t, mux, staffCaller, http.MethodPut, "/appointments/"+created.ID+"/status", `{"status":"confirmed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doAs(t, mux, staffCaller, http.MethodPut, "/appointments/00000000-0000-0000-0000-000000000000/status", `{"status":"confirmed"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}

	rec = doAs(t, mux, staffCaller, http.MethodPut, "/appointments/not-a-uuid/status", `{"status":"confirmed"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("malformed id status = %d, want 404", rec.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(9, 10))
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	other := booking.Caller{ID: "44444444-4444-4444-4444-444444444444", Role: booking.RolePatient}
	rec = doAs(t, mux, other, http.MethodDelete, "/appointments/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", rec.Code)
	}

	rec = doAs(t, mux, patientCaller, http.MethodDelete, "/appointments/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own delete status = %d, want 200", rec.Code)
	}
	var deleted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("invalid delete body: %v", err)
	}
	if deleted.ID != created.ID || deleted.Status != "deleted" {
		t.Fatalf("delete body = %+v", deleted)
	}

	rec = doAs(t, mux, patientCaller, http.MethodDelete, "/appointments/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete status = %d, want 404", rec.Code)
	}
}

func TestListEndpointScopes(t *testing.T) {
	mux := newTestMux(t)

	if rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(9, 10)); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec := doAs(t, mux, patientCaller, http.MethodGet, "/appointments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var own []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &own); err != nil {
		t.Fatalf("invalid list body: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("patient list length = %d, want 1", len(own))
	}

	// Another patient sees an empty array, not null.
	other := booking.Caller{ID: "44444444-4444-4444-4444-444444444444", Role: booking.RolePatient}
	rec = doAs(t, mux, other, http.MethodGet, "/appointments", "")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("empty list body = %q, want []", body)
	}
}

func TestSlotsEndpoint(t *testing.T) {
	mux := newTestMux(t)

	if rec := doAs(t, mux, patientCaller, http.MethodPost, "/appointments", createBody(9, 10)); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	target := "/appointments/slots?clinic_id=" + testClinicID + "&room_id=" + testRoomID + "&from=" + futureHour(9) + "&to=" + futureHour(11) + "&duration=30m"
	rec := doAs(t, mux, patientCaller, http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("slots status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var slots []struct {
		StartTime string `json:"start_time"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid slots body: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2 (10:00 and 10:30)", len(slots))
	}

	rec = doAs(t, mux, patientCaller, http.MethodGet, "/appointments/slots?clinic_id="+testClinicID+"&room_id="+testRoomID+"&from=bad&to="+futureHour(11), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad window status = %d, want 400", rec.Code)
	}

	// Malformed room id never reaches the store.
	rec = doAs(t, mux, patientCaller, http.MethodGet, "/appointments/slots?clinic_id="+testClinicID+"&room_id=room-1&from="+futureHour(9)+"&to="+futureHour(11), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed room id status = %d, want 400", rec.Code)
	}
}
