package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

const serviceName = "api"

// Services groups the inbound ports served over HTTP. Nil entries answer 503.
type Services struct {
	Explainer ports.FaultExplainer
	Ingestor  ports.FileIngestor
	Index     ports.IndexMaintainer
	History   ports.HistoryService
	LogFiles  ports.LogFileBrowser
	Breakers  BreakerStates
}

// BreakerStates reports circuit-breaker state per outbound operation.
type BreakerStates interface {
	States() map[string]string
}

// RejectionRecorder counts requests turned away by traffic control.
type RejectionRecorder interface {
	RecordRejected(service, reason string)
}

type Router struct {
	cfg      config.Config
	services Services

	metricsHandler http.Handler
	rejections     RejectionRecorder
	validator      *requestValidator
}

type RouterOption func(*Router)

// WithMetrics exposes handler on /metrics and counts traffic-control rejections.
func WithMetrics(handler http.Handler, rejections RejectionRecorder) RouterOption {
	return func(rt *Router) {
		rt.metricsHandler = handler
		rt.rejections = rejections
	}
}

func NewRouter(cfg config.Config, services Services, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:       cfg,
		services:  services,
		validator: mustRequestValidator(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPISpec)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}

	mux.HandleFunc("POST /api/upload", rt.uploadLog)
	mux.HandleFunc("POST /api/process", rt.processLog)
	mux.HandleFunc("POST /api/query", rt.query)
	mux.HandleFunc("POST /api/history/save", rt.saveHistory)
	mux.HandleFunc("GET /api/history", rt.listHistory)
	mux.HandleFunc("POST /api/feedback", rt.submitFeedback)
	mux.HandleFunc("GET /api/files", rt.listLogFiles)
	mux.HandleFunc("GET /api/faults/{filename}", rt.listFaults)
	mux.HandleFunc("GET /api/preview/{filename}", rt.previewLog)
	mux.HandleFunc("POST /api/kb/upload", rt.uploadKnowledgeBase)
	mux.HandleFunc("GET /api/kb/files", rt.listKnowledgeBase)
	mux.HandleFunc("POST /api/kb/process", rt.processKnowledgeBase)
	mux.HandleFunc("POST /api/index/rebuild", rt.rebuildIndex)
	mux.HandleFunc("POST /api/index/clear", rt.clearIndex)

	var handler http.Handler = rt.validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.recordRejected)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)
	handler = exemptOperationalPaths(mux, handler)
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejected(reason string) {
	if rt.rejections != nil {
		rt.rejections.RecordRejected(serviceName, reason)
	}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Time     string            `json:"time"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// healthz always answers 200; status turns "degraded" while any breaker is not closed.
func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	res := healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if rt.services.Breakers != nil {
		res.Breakers = rt.services.Breakers.States()
		for _, state := range res.Breakers {
			if state != "closed" {
				res.Status = "degraded"
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func serviceUnavailable(w http.ResponseWriter, name string) {
	writeMessage(w, http.StatusServiceUnavailable, name+" is not configured")
}
