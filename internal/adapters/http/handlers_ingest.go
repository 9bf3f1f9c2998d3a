package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type uploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	JobID    string `json:"job_id"`
	Kind     string `json:"kind"`
}

// uploadLog stores a log export or, with kind=manual, a fault-code manual.
func (rt *Router) uploadLog(w http.ResponseWriter, r *http.Request) {
	kind := domain.IngestLog
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind = domain.IngestKind(raw)
	}
	if kind != domain.IngestLog && kind != domain.IngestManual {
		writeMessage(w, http.StatusBadRequest, "kind must be log or manual")
		return
	}
	rt.upload(w, r, kind, "File uploaded successfully")
}

func (rt *Router) uploadKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	rt.upload(w, r, domain.IngestKnowledgeBase, "File uploaded to Knowledge Base")
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request, kind domain.IngestKind, message string) {
	if rt.services.Ingestor == nil {
		serviceUnavailable(w, "ingestion")
		return
	}
	if limit := rt.cfg.APIMaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			writeMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeMessage(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	job, err := rt.services.Ingestor.Upload(r.Context(), kind, header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  message,
		Filename: job.Filename,
		JobID:    job.ID,
		Kind:     string(job.Kind),
	})
}

func (rt *Router) processLog(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingestor == nil {
		serviceUnavailable(w, "ingestion")
		return
	}
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		writeMessage(w, http.StatusBadRequest, "filename is required")
		return
	}
	kind := domain.IngestLog
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind = domain.IngestKind(raw)
	}

	report, err := rt.services.Ingestor.ProcessStored(r.Context(), kind, filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingestor == nil {
		serviceUnavailable(w, "ingestion")
		return
	}
	files, err := rt.services.Ingestor.ListFiles(r.Context(), domain.IngestKnowledgeBase)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"count": len(files),
	})
}

type kbProcessRequest struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// processKnowledgeBase indexes one stored upload when filename is given, otherwise a
// directory below the knowledge-base root.
func (rt *Router) processKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingestor == nil {
		serviceUnavailable(w, "ingestion")
		return
	}

	var req kbProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	if name := strings.TrimSpace(req.Filename); name != "" {
		report, err := rt.services.Ingestor.ProcessStored(r.Context(), domain.IngestKnowledgeBase, name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	dir, err := resolveUnder(rt.cfg.KBPath, req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.services.Ingestor.ProcessDirectory(r.Context(), dir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	if rt.services.Index == nil {
		serviceUnavailable(w, "index maintenance")
		return
	}
	count, err := rt.services.Index.Rebuild(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Indexed %d chunks", count),
		"count":   count,
	})
}

func (rt *Router) clearIndex(w http.ResponseWriter, r *http.Request) {
	if rt.services.Index == nil {
		serviceUnavailable(w, "index maintenance")
		return
	}
	if err := rt.services.Index.ClearAll(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Index cleared"})
}

// resolveUnder joins a client-supplied relative path onto root and refuses to leave it.
func resolveUnder(root, rel string) (string, error) {
	root = filepath.Clean(root)
	rel = strings.TrimSpace(rel)
	if rel == "" || rel == "." {
		return root, nil
	}
	if filepath.IsAbs(rel) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve path", fmt.Errorf("path %q must be relative", rel))
	}
	joined := filepath.Join(root, rel)
	inside, err := filepath.Rel(root, joined)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve path", fmt.Errorf("path %q escapes the knowledge base", rel))
	}
	return joined, nil
}
