package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/handruler/internal/calibration"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/session"
	"github.com/ayusman/handruler/internal/store"
)

// Controller is the part of the measurement session the API drives.
type Controller interface {
	Status() session.Status
	Latest() *measure.Snapshot
	Calibrate(referencePixels, referenceLength float64) error
	CalibrateReference(referencePixels float64) error
	StartMeasuring() error
	Save() (*store.Record, error)
}

// SessionHandler serves the session workflow:
//
//	GET  /api/status
//	POST /api/calibrate
//	POST /api/measure/start
//	POST /api/measure/save
type SessionHandler struct {
	session Controller
	// refPixels supplies the on-screen box width when a calibrate request
	// omits reference_pixels.
	refPixels func() float64
}

// NewSessionHandler creates a SessionHandler. refPixels may be nil.
func NewSessionHandler(c Controller, refPixels func() float64) *SessionHandler {
	return &SessionHandler{session: c, refPixels: refPixels}
}

type statusResponse struct {
	Status   session.Status    `json:"status"`
	Snapshot *measure.Snapshot `json:"snapshot"`
}

type calibrateRequest struct {
	ReferencePixels float64 `json:"reference_pixels"`
	ReferenceLength float64 `json:"reference_length"`
}

// Register adds the session routes to mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.status)
	mux.HandleFunc("/api/calibrate", h.calibrate)
	mux.HandleFunc("/api/measure/start", h.start)
	mux.HandleFunc("/api/measure/save", h.save)
}

func (h *SessionHandler) respond(w http.ResponseWriter, code int) {
	writeJSON(w, code, statusResponse{
		Status:   h.session.Status(),
		Snapshot: h.session.Latest(),
	})
}

// status handles GET /api/status.
func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.respond(w, http.StatusOK)
}

// calibrate handles POST /api/calibrate. An empty body calibrates against
// the on-screen box with the configured reference length.
func (h *SessionHandler) calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pixels := req.ReferencePixels
	if pixels == 0 && h.refPixels != nil {
		pixels = h.refPixels()
	}

	var err error
	if req.ReferenceLength == 0 {
		err = h.session.CalibrateReference(pixels)
	} else {
		err = h.session.Calibrate(pixels, req.ReferenceLength)
	}
	if err != nil {
		if errors.Is(err, calibration.ErrInvalidCalibrationInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to calibrate")
		return
	}

	h.respond(w, http.StatusOK)
}

// start handles POST /api/measure/start.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.session.StartMeasuring(); err != nil {
		if errors.Is(err, session.ErrNotCalibrated) {
			writeError(w, http.StatusConflict, "Calibrate before measuring")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start measuring")
		return
	}

	h.respond(w, http.StatusOK)
}

// save handles POST /api/measure/save and returns the stored record.
func (h *SessionHandler) save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.session.Save()
	switch {
	case errors.Is(err, session.ErrNotMeasuring):
		writeError(w, http.StatusConflict, "Not measuring")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to save measurement")
	case rec == nil:
		writeError(w, http.StatusConflict, "No stable measurement to save")
	default:
		writeJSON(w, http.StatusCreated, rec)
	}
}
