package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if rt.services.Explainer == nil {
		serviceUnavailable(w, "fault explainer")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeMessage(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		writeMessage(w, http.StatusBadRequest, "top_k must be positive")
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = rt.cfg.RAGTopK
	}

	ctx := r.Context()
	if rt.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.cfg.GenerationTimeout)
		defer cancel()
	}

	result, err := rt.services.Explainer.Explain(ctx, req.Query, topK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type historySaveRequest struct {
	Filename string          `json:"filename"`
	Query    string          `json:"query"`
	Result   json.RawMessage `json:"result"`
}

func (rt *Router) saveHistory(w http.ResponseWriter, r *http.Request) {
	if rt.services.History == nil {
		serviceUnavailable(w, "history")
		return
	}

	var req historySaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	entry, err := rt.services.History.SaveHistory(r.Context(), req.Filename, req.Query, req.Result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "History saved successfully",
		"id":      entry.ID,
	})
}

func (rt *Router) listHistory(w http.ResponseWriter, r *http.Request) {
	if rt.services.History == nil {
		serviceUnavailable(w, "history")
		return
	}

	entries, err := rt.services.History.ListHistory(r.Context(), r.URL.Query().Get("filename"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type feedbackRequest struct {
	Query    string `json:"query"`
	Response string `json:"response"`
	Rating   string `json:"rating"`
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	if rt.services.History == nil {
		serviceUnavailable(w, "history")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	if _, err := rt.services.History.SubmitFeedback(r.Context(), req.Query, req.Response, req.Rating); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback saved successfully"})
}
