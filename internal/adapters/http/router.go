package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/config"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/observability/metrics"
)

const (
	routeUpload  = "/v1/documents"
	routeProcess = "/v1/documents/process"
)

type Router struct {
	cfg       config.Config
	ingestor  ports.DocumentIngestor
	processor ports.DocumentSyncProcessor
	docs      ports.DocumentReader
	logger    *slog.Logger
	metrics   *metrics.HTTPServerMetrics
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	processor ports.DocumentSyncProcessor,
	docs ports.DocumentReader,
	opts ...Option,
) *Router {
	rt := &Router{
		cfg:       cfg,
		ingestor:  ingestor,
		processor: processor,
		docs:      docs,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	var onReject func(string)
	if rt.metrics != nil {
		onReject = rt.metrics.ObserveRejected
	}
	gate := newTrafficGate(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, onReject)

	mux := http.NewServeMux()
	rt.handle(mux, "/healthz", "/healthz", http.HandlerFunc(rt.healthz))
	rt.handle(mux, "/v1/documents", routeUpload, http.HandlerFunc(rt.uploadDocument))
	rt.handle(mux, "/v1/documents/process", routeProcess, gate.bound(http.HandlerFunc(rt.processDocument)))
	rt.handle(mux, "/v1/documents/", "/v1/documents/{id}", http.HandlerFunc(rt.getDocumentByID))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := gate.limit(mux)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) handle(mux *http.ServeMux, pattern, route string, h http.Handler) {
	if rt.metrics != nil {
		h = rt.metrics.Route(route, h)
	}
	mux.Handle(pattern, h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	upload, ok := rt.readUpload(w, r)
	if !ok {
		return
	}

	doc, err := rt.ingestor.Upload(r.Context(), upload.clientID, upload.filename, upload.mimeType, bytes.NewReader(upload.content))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// processDocument runs the pipeline inline. Phase 0 only classifies; phase 1 (default)
// extracts, optionally reusing a phase0_result the caller got earlier.
func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	upload, ok := rt.readUpload(w, r)
	if !ok {
		return
	}

	phase, err := parsePhase(r.FormValue("phase"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var phase0 domain.Record
	if raw := strings.TrimSpace(r.FormValue("phase0_result")); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&phase0); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phase0_result must be a JSON object"})
			return
		}
	}

	result := rt.processor.ProcessContent(r.Context(), domain.ProcessRequest{
		ClientID:     upload.clientID,
		Filename:     upload.filename,
		Content:      upload.content,
		Phase:        phase,
		Phase0Result: phase0,
	})
	if result.Error != "" {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type upload struct {
	clientID string
	filename string
	mimeType string
	content  []byte
}

func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	limit := rt.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 20 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return upload{}, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return upload{}, false
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload"})
		return upload{}, false
	}
	if int64(len(content)) > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return upload{}, false
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(r.URL.Path, int64(len(content)))
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(content)
	}
	return upload{
		clientID: strings.TrimSpace(r.FormValue("client_id")),
		filename: fileHeader.Filename,
		mimeType: mimeType,
		content:  content,
	}, true
}

func parsePhase(raw string) (domain.Phase, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.PhaseExtract, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || (n != int(domain.PhaseClassify) && n != int(domain.PhaseExtract)) {
		return 0, errors.New("phase must be 0 or 1")
	}
	return domain.Phase(n), nil
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
