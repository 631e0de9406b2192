package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        *logger.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: service.log.Component("http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.URL.Path {
	case "/api/health":
		if allowMethod(w, r, http.MethodGet, http.MethodHead) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		}
		return
	case "/api/ready":
		if allowMethod(w, r, http.MethodGet, http.MethodHead) {
			s.handleReady(w, r)
		}
		return
	case "/metrics":
		if allowMethod(w, r, http.MethodGet) {
			s.service.metrics.Handler().ServeHTTP(w, r)
		}
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "registry" {
		writeError(w, http.StatusNotFound, "not_found", "Not found", nil)
		return
	}

	switch {
	case len(parts) == 3 && parts[2] == "bundle":
		if allowMethod(w, r, http.MethodGet) {
			s.handleBundle(w, r)
		}
	case len(parts) == 3 && parts[2] == "write":
		if allowMethod(w, r, http.MethodPost) {
			s.handleWrite(w, r)
		}
	case len(parts) == 3 && parts[2] == "undo":
		if allowMethod(w, r, http.MethodPost) {
			s.handleUndo(w, r)
		}
	case len(parts) == 3 && parts[2] == "version":
		if allowMethod(w, r, http.MethodGet) {
			s.handleVersion(w, r)
		}
	case len(parts) == 3 && parts[2] == "search":
		if allowMethod(w, r, http.MethodGet) {
			s.handleSearch(w, r)
		}
	case len(parts) == 3 && parts[2] == "export":
		if allowMethod(w, r, http.MethodGet) {
			s.handleExport(w, r)
		}
	case len(parts) == 4 && parts[2] == "published":
		if allowMethod(w, r, http.MethodGet) {
			s.handlePublished(w, r, parts[3])
		}
	default:
		writeError(w, http.StatusNotFound, "not_found", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleBundle(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Bundle(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleWrite(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Authorize(bearerToken(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	var input WriteInput
	if err := decodeBody(r, &input); err != nil {
		s.fail(w, r, errInvalidJSON)
		return
	}
	result, err := s.service.Write(r.Context(), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUndo(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Authorize(bearerToken(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	var input UndoInput
	if err := decodeBody(r, &input); err != nil {
		s.fail(w, r, errInvalidJSON)
		return
	}
	meta, err := s.service.UndoPublish(r.Context(), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "meta": meta})
}

func (s *HTTPServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.service.PublishedVersion(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"publishedVersion": version})
}

func (s *HTTPServer) handlePublished(w http.ResponseWriter, r *http.Request, name string) {
	version, doc, err := s.service.PublishedDocument(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
	w.Header().Set("X-Registry-Version", string(version))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Export(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	if limit < 0 || limit > 100 {
		limit = 20
	}
	resp, err := s.service.Search(r.Context(), query.Get("q"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail writes the mapped error response; unexpected errors are logged.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("code", code).
			Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		s.service.metrics.RecordHTTPRequest(r.Method, strconv.Itoa(writer.status), elapsed)
		s.log.LogRequest(requestID, r.Method, r.URL.Path, writer.status, elapsed)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Registry-Version")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json; charset=utf-8")
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, method := range methods {
		if r.Method == method {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits {"error": code, "message": message} plus any details as
// extra top-level fields.
func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	response := map[string]any{
		"error":   code,
		"message": message,
	}
	for key, value := range details {
		response[key] = value
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return err
	}
	return nil
}

const maxBodyBytes = 8 << 20

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
