package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// AttendanceHandler serves attendance reports from the ledger.
type AttendanceHandler struct {
	ledger  *attendance.Ledger
	gallery *gallery.Gallery
	now     func() time.Time
}

// NewAttendanceHandler creates a new attendance handler. A nil clock means time.Now.
func NewAttendanceHandler(l *attendance.Ledger, g *gallery.Gallery, clock func() time.Time) *AttendanceHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AttendanceHandler{ledger: l, gallery: g, now: clock}
}

// AttendanceResponse is the body of the period report.
type AttendanceResponse struct {
	Period  string              `json:"period"`
	Count   int                 `json:"count"`
	Records []attendance.Record `json:"records"`
}

// TodayResponse tells whether an identity is marked today.
type TodayResponse struct {
	IdentityID string `json:"identity_id"`
	Date       string `json:"date"`
	Marked     bool   `json:"marked"`
}

// List returns the records of the requested period (?period=week|month).
// An optional ?name= filter keeps records whose display name contains it,
// ignoring case and diacritics.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	period, err := attendance.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.ledger.Query(r.Context(), period, h.now())
	if err != nil {
		log.Printf("Failed to query attendance for %s: %v", period, err)
		respondError(w, http.StatusInternalServerError, "failed to query attendance")
		return
	}

	if name := r.URL.Query().Get("name"); name != "" {
		filtered := records[:0]
		for _, rec := range records {
			if facematch.NameContains(rec.DisplayName, name) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []attendance.Record{}
	}

	respondJSON(w, http.StatusOK, AttendanceResponse{
		Period:  period.String(),
		Count:   len(records),
		Records: records,
	})
}

// Today reports whether the identity in the URL has been marked today.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")
	if _, ok := h.gallery.Lookup(identityID); !ok {
		respondError(w, http.StatusNotFound, "unknown identity")
		return
	}

	date := h.ledger.Date(h.now())
	marked, err := h.ledger.RecordExists(r.Context(), identityID, date)
	if err != nil {
		log.Printf("Failed to check attendance of %s: %v", sanitizeForLog(identityID), err)
		respondError(w, http.StatusInternalServerError, "failed to check attendance")
		return
	}

	respondJSON(w, http.StatusOK, TodayResponse{
		IdentityID: identityID,
		Date:       date,
		Marked:     marked,
	})
}

// Summary returns today's marks.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary(r.Context(), h.now())
	if err != nil {
		log.Printf("Failed to build attendance summary: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
