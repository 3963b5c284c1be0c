package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/handruler/internal/store"
)

// RecordsHandler serves saved hand measurements:
//
//	GET /api/records
//	GET /api/records/{hand_index}
type RecordsHandler struct {
	records store.Repository
}

// NewRecordsHandler creates a new RecordsHandler over repo.
func NewRecordsHandler(repo store.Repository) *RecordsHandler {
	return &RecordsHandler{records: repo}
}

type listRecordsResponse struct {
	Records []store.Record `json:"records"`
}

// ServeHTTP implements the http.Handler interface.
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/records")
	path = strings.TrimPrefix(path, "/")

	records, err := h.records.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	if path == "" {
		if records == nil {
			records = []store.Record{}
		}
		writeJSON(w, http.StatusOK, listRecordsResponse{Records: records})
		return
	}

	index, err := strconv.Atoi(path)
	if err != nil || index < 1 {
		writeError(w, http.StatusBadRequest, "Invalid hand index")
		return
	}

	// A hand saved twice under the same index reports the latest save.
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].HandIndex == index {
			writeJSON(w, http.StatusOK, records[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Record not found")
}
