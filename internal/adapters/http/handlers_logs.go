package httpadapter

import (
	"net/http"
	"strconv"
	"strings"
)

const maxPreviewRows = 1000

func (rt *Router) listLogFiles(w http.ResponseWriter, r *http.Request) {
	if rt.services.LogFiles == nil {
		serviceUnavailable(w, "log files")
		return
	}
	files, err := rt.services.LogFiles.ListFiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (rt *Router) listFaults(w http.ResponseWriter, r *http.Request) {
	if rt.services.LogFiles == nil {
		serviceUnavailable(w, "log files")
		return
	}
	faults, err := rt.services.LogFiles.Faults(r.Context(), r.PathValue("filename"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"faults": faults})
}

// previewLog returns the header plus up to ?rows= data rows, capped at maxPreviewRows.
func (rt *Router) previewLog(w http.ResponseWriter, r *http.Request) {
	if rt.services.LogFiles == nil {
		serviceUnavailable(w, "log files")
		return
	}

	rows := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("rows")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "rows must be a positive integer")
			return
		}
		rows = min(n, maxPreviewRows)
	}

	preview, err := rt.services.LogFiles.Preview(r.Context(), r.PathValue("filename"), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": preview})
}
