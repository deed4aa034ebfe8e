package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyperjump/kbase/internal/config"
	"github.com/hyperjump/kbase/internal/extract"
	"github.com/hyperjump/kbase/internal/indexer"
	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/internal/storage"
	"go.uber.org/zap"
)

// RootMessage is served at GET /.
const RootMessage = "LLM Agent with Dynamic Knowledge Base API is running!"

type chatRequest struct {
	Message string `json:"message"`
	K       int    `json:"k,omitempty"`
}

type sourcesEvent struct {
	Type    string   `json:"type"`
	Sources []string `json:"sources"`
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrEmptyQuestion),
		errors.Is(err, models.ErrInvalidK),
		errors.Is(err, models.ErrInvalidMetadata),
		errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": RootMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := models.Health{
		RAGPipeline:       s.service != nil,
		DocumentProcessor: s.service != nil && s.service.Indexer() != nil,
	}
	if s.service != nil {
		h.GenerationConfigured = s.service.GenerationConfigured()
	}
	status := http.StatusOK
	h.Status = "healthy"
	if !h.Healthy() {
		h.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, h)
}

func (s *Server) decodeChat(r *http.Request) (*chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeChat(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.Int("question_length", len(req.Message)), zap.Int("k", req.K))
	answer, err := s.service.Query(r.Context(), req.Message, req.K)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeChat(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	streamID := uuid.NewString()
	logger := s.logger.With(zap.String("stream_id", streamID))

	sources, events, err := s.service.QueryStream(r.Context(), req.Message, req.K)
	if err != nil && statusFor(err) == http.StatusBadRequest {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Stream-ID", streamID)
	w.WriteHeader(http.StatusOK)

	if err != nil {
		logger.Error("stream retrieval failed", zap.Error(err))
		s.writeEvent(w, flusher, models.ErrorEvent(err.Error()))
		return
	}
	logger.Debug("stream started", zap.Strings("sources", sources))
	if sources == nil {
		sources = []string{}
	}
	if err := s.writeEvent(w, flusher, sourcesEvent{Type: "sources", Sources: sources}); err != nil {
		logger.Debug("stream client gone", zap.Error(err))
		return
	}
	n := 0
	for ev := range events {
		if err := s.writeEvent(w, flusher, ev); err != nil {
			logger.Debug("stream client gone", zap.Error(err))
			return
		}
		if ev.Type == models.EventContent {
			n++
		}
		if ev.Type == models.EventError {
			logger.Error("stream generation failed", zap.String("error", ev.Content))
		}
	}
	logger.Debug("stream finished", zap.Int("content_events", n))
}

func (s *Server) writeEvent(w io.Writer, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Upload.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		s.respondError(w, status, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !indexer.ExtensionAllowed(ext, s.config.Upload.Extensions) {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported file type %q (allowed: %s)", ext, strings.Join(s.config.Upload.Extensions, ", ")))
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Debug("upload request", zap.String("filename", filename), zap.Int("bytes", len(content)))
	if _, err := s.service.IngestBytes(r.Context(), content, filename); err != nil {
		s.logger.Error("upload ingestion failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"filename": filename,
		"message":  fmt.Sprintf("Document '%s' has been successfully added to the knowledge base", filename),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.Indexer().Documents(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.DocumentStat{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	doc, err := s.service.Indexer().Document(r.Context(), filename)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idx := s.service.Indexer()
	processing, err := idx.ProcessingStats(ctx)
	if err != nil {
		s.logger.Error("stats: processing stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	collection, err := idx.CollectionStats(ctx)
	if err != nil {
		s.logger.Error("stats: collection stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats := models.SystemStats{
		Processing:      processing,
		Collection:      collection,
		SupportedUpload: s.config.Upload.Extensions,
	}
	if s.config.Vector.Backend != "memory" {
		stats.IndexPath = s.config.Storage.IndexPath
		if n, err := storage.IndexDiskUsage(stats.IndexPath); err == nil {
			stats.IndexDiskUsage = n
		}
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
