package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// RecognizeHandler feeds detections and frames into the recognizer.
type RecognizeHandler struct {
	recognizer *recognition.Recognizer
}

// NewRecognizeHandler creates a new recognize handler
func NewRecognizeHandler(rec *recognition.Recognizer) *RecognizeHandler {
	return &RecognizeHandler{recognizer: rec}
}

// DetectionsRequest carries faces found by an external detector.
type DetectionsRequest struct {
	Detections []recognition.Detection `json:"detections"`
}

// OutcomeResponse is the result for a single detection.
type OutcomeResponse struct {
	BBox        []float64          `json:"bbox,omitempty"`
	BBoxRel     []float64          `json:"bbox_rel,omitempty"`
	Matched     bool               `json:"matched"`
	IdentityID  string             `json:"identity_id,omitempty"`
	DisplayName string             `json:"display_name,omitempty"`
	Distance    *float64           `json:"distance,omitempty"`
	Mark        string             `json:"mark,omitempty"`
	Record      *attendance.Record `json:"record,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// RecognizeResponse lists one outcome per detection, in detection order.
type RecognizeResponse struct {
	Faces    int               `json:"faces"`
	Marked   int               `json:"marked"`
	Outcomes []OutcomeResponse `json:"outcomes"`
}

// Detections matches and marks pushed detections.
func (h *RecognizeHandler) Detections(w http.ResponseWriter, r *http.Request) {
	var req DetectionsRequest
	body := http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Detections) == 0 {
		respondError(w, http.StatusBadRequest, "detections are required")
		return
	}
	if len(req.Detections) > constants.MaxDetectionsPerRequest {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d detections per request", constants.MaxDetectionsPerRequest))
		return
	}

	outcomes := h.recognizer.ProcessDetections(r.Context(), req.Detections)
	respondJSON(w, http.StatusOK, newRecognizeResponse(outcomes))
}

// Recognize runs an uploaded frame (multipart field "file") through face detection.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	frame, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	outcomes, err := h.recognizer.ProcessFrame(r.Context(), frame)
	switch {
	case errors.Is(err, recognition.ErrNoDetector):
		respondError(w, http.StatusServiceUnavailable, "face detection is not configured")
		return
	case err != nil:
		log.Printf("Failed to recognize frame %s: %v", sanitizeForLog(header.Filename), err)
		respondError(w, http.StatusUnprocessableEntity, "failed to process frame")
		return
	}

	respondJSON(w, http.StatusOK, newRecognizeResponse(outcomes))
}

func newRecognizeResponse(outcomes []recognition.Outcome) RecognizeResponse {
	resp := RecognizeResponse{
		Faces:    len(outcomes),
		Outcomes: make([]OutcomeResponse, len(outcomes)),
	}
	for i, o := range outcomes {
		out := OutcomeResponse{
			BBox:    o.Detection.BBox,
			BBoxRel: o.Detection.RelBBox,
			Matched: o.Match.Found,
		}
		if o.Match.Found {
			out.IdentityID = o.Match.Identity.ID
			out.DisplayName = o.Match.Identity.DisplayName
			distance := o.Match.Distance
			out.Distance = &distance
		}
		if o.Mark != 0 {
			out.Mark = o.Mark.String()
			rec := o.Record
			out.Record = &rec
		}
		if o.Mark == attendance.Created {
			resp.Marked++
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.Outcomes[i] = out
	}
	return resp
}
