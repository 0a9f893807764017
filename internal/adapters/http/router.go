package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/gfaraujo/normabot/internal/core/ports"
	"github.com/gfaraujo/normabot/internal/observability/metrics"
)

// Router exposes the webhook surface: the Meta verification handshake, the
// event receiver and health. Everything heavier happens in the worker.
type Router struct {
	queue       ports.MessageQueue
	metrics     *metrics.HTTPServerMetrics
	service     string
	verifyToken string
	appSecret   string
}

func NewRouter(
	queue ports.MessageQueue,
	m *metrics.HTTPServerMetrics,
	service, verifyToken, appSecret string,
) *Router {
	return &Router{
		queue:       queue,
		metrics:     m,
		service:     service,
		verifyToken: verifyToken,
		appSecret:   appSecret,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/webhook", rt.webhook)

	var handler http.Handler = mux
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) webhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.verifyWebhook(w, r)
	case http.MethodPost:
		rt.receiveEvents(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
