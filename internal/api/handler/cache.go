package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/usecase"
	"github.com/hszk-dev/vidcache/internal/videocache"
)

// Request/Response types

type LookupRequest struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"` // epoch milliseconds
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type EntryResponse struct {
	ID                string  `json:"id"`
	FileName          string  `json:"file_name"`
	Size              int64   `json:"size"`
	LastModified      string  `json:"last_modified"`
	Format            string  `json:"format"`
	Duration          float64 `json:"duration"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Thumbnail         string  `json:"thumbnail,omitempty"`
	Preview           string  `json:"preview,omitempty"`
	HasCompressedData bool    `json:"has_compressed_data"`
	UploadStatus      string  `json:"upload_status"`
	CreatedAt         string  `json:"created_at"`
}

type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
}

type StatsResponse struct {
	Entries            int    `json:"entries"`
	MemoryUsage        int64  `json:"memory_usage"`
	FormattedSize      string `json:"formatted_size"`
	MaxEntries         int    `json:"max_entries"`
	MaxBytes           int64  `json:"max_bytes"`
	UtilizationPercent int    `json:"utilization_percent"`
}

type CleanupResponse struct {
	Dropped int `json:"dropped"`
}

type UploadResponse struct {
	ID          string `json:"id"`
	ObjectKey   string `json:"object_key"`
	DownloadURL string `json:"download_url,omitempty"`
}

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to disk.
const multipartMemory = 32 << 20

// CacheHandler exposes the video cache over HTTP.
type CacheHandler struct {
	cache          videocache.VideoCache
	uploads        usecase.UploadService
	maxUploadBytes int64
}

// NewCacheHandler creates a new CacheHandler. Request bodies larger than
// maxUploadBytes are rejected. uploads may be nil when object storage is
// not configured.
func NewCacheHandler(cache videocache.VideoCache, uploads usecase.UploadService, maxUploadBytes int64) *CacheHandler {
	return &CacheHandler{
		cache:          cache,
		uploads:        uploads,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the cache routes on r.
func (h *CacheHandler) Register(r chi.Router) {
	r.Route("/videos", func(r chi.Router) {
		r.Post("/", h.Add)
		r.Get("/", h.Recent)
		r.Post("/lookup", h.Lookup)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Remove)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/upload", h.Upload)
	})
	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Post("/cleanup", h.Cleanup)
		r.Delete("/", h.Clear)
	})
}

// Add handles POST /v1/videos
//
// The body is multipart/form-data with a "file" part, an optional
// "compressed" part and the form fields "last_modified" (epoch milliseconds),
// "generate_thumbnail" and "generate_preview".
func (h *CacheHandler) Add(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request_too_large", "Request body exceeds the upload limit")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request", "Body must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	lastModified, err := parseMillis(r.FormValue("last_modified"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_last_modified", "last_modified must be epoch milliseconds")
		return
	}

	data, header, err := readFormFile(r, "file")
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_file", "A file part is required")
		return
	}

	var compressed []byte
	if _, ok := r.MultipartForm.File["compressed"]; ok {
		compressed, _, err = readFormFile(r, "compressed")
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid_compressed", "Compressed part could not be read")
			return
		}
	}

	file, err := model.NewSourceFile(header.Filename, lastModified, declaredType(header), data)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	opts := model.AddOptions{
		GenerateThumbnail: parseBool(r.FormValue("generate_thumbnail")),
		GeneratePreview:   parseBool(r.FormValue("generate_preview")),
	}

	id, err := h.cache.Add(r.Context(), file, compressed, opts)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	entry, ok := h.cache.Get(r.Context(), id)
	if !ok {
		// Evicted between insertion and read; the id is still meaningful to the caller.
		JSON(w, http.StatusCreated, EntryResponse{ID: id})
		return
	}

	JSON(w, http.StatusCreated, toEntryResponse(entry))
}

// Lookup handles POST /v1/videos/lookup
func (h *CacheHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	file := model.SourceFile{
		Name:         req.Name,
		Size:         req.Size,
		LastModified: time.UnixMilli(req.LastModified),
	}
	if err := file.Validate(); err != nil {
		h.handleServiceError(w, err)
		return
	}

	entry, ok := h.cache.GetByFile(r.Context(), file)
	if !ok {
		Error(w, http.StatusNotFound, "entry_not_found", "No cached entry for this file")
		return
	}

	JSON(w, http.StatusOK, toEntryResponse(entry))
}

// Recent handles GET /v1/videos?limit=n
func (h *CacheHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := h.cache.Recent(limit)
	resp := EntryListResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}

	JSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/videos/{id}
func (h *CacheHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, found := h.cache.Get(r.Context(), id)
	if !found {
		Error(w, http.StatusNotFound, "entry_not_found", "Entry not found")
		return
	}

	JSON(w, http.StatusOK, toEntryResponse(entry))
}

// Remove handles DELETE /v1/videos/{id}
func (h *CacheHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	h.cache.Remove(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /v1/videos/{id}/status
func (h *CacheHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if _, found := h.cache.Get(r.Context(), id); !found {
		Error(w, http.StatusNotFound, "entry_not_found", "Entry not found")
		return
	}

	if err := h.cache.UpdateStatus(r.Context(), id, model.UploadStatus(req.Status)); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /v1/videos/{id}/upload
func (h *CacheHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	if h.uploads == nil {
		Error(w, http.StatusServiceUnavailable, "uploads_disabled", "Object storage is not configured")
		return
	}

	out, err := h.uploads.Upload(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, UploadResponse{
		ID:          out.EntryID,
		ObjectKey:   out.ObjectKey,
		DownloadURL: out.DownloadURL,
	})
}

// Stats handles GET /v1/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s := h.cache.Stats()
	JSON(w, http.StatusOK, StatsResponse{
		Entries:            s.Entries,
		MemoryUsage:        s.MemoryUsage,
		FormattedSize:      s.FormattedSize,
		MaxEntries:         s.MaxEntries,
		MaxBytes:           s.MaxBytes,
		UtilizationPercent: s.UtilizationPercent,
	})
}

// Cleanup handles POST /v1/cache/cleanup
func (h *CacheHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, CleanupResponse{Dropped: h.cache.Cleanup(r.Context())})
}

// Clear handles DELETE /v1/cache
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *CacheHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrEmptyFileName):
		Error(w, http.StatusBadRequest, "invalid_file_name", "File name cannot be empty")
	case errors.Is(err, model.ErrNegativeSize), errors.Is(err, model.ErrSizeMismatch):
		Error(w, http.StatusBadRequest, "invalid_size", "File size is invalid")
	case errors.Is(err, model.ErrInvalidStatus):
		Error(w, http.StatusBadRequest, "invalid_status", "Status must be one of pending, uploading, completed, failed")
	case errors.Is(err, videocache.ErrEntryTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the cache capacity")
	case errors.Is(err, videocache.ErrDecode):
		Error(w, http.StatusUnprocessableEntity, "decode_failed", "File could not be decoded as video")
	case errors.Is(err, usecase.ErrEntryNotFound):
		Error(w, http.StatusNotFound, "entry_not_found", "Entry not found")
	case errors.Is(err, usecase.ErrUploadInProgress):
		Error(w, http.StatusConflict, "upload_in_progress", "Entry is already being uploaded")
	case errors.Is(err, usecase.ErrUploadAlreadyCompleted):
		Error(w, http.StatusConflict, "upload_already_completed", "Entry has already been uploaded")
	default:
		slog.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toEntryResponse(e *model.CacheEntry) EntryResponse {
	return EntryResponse{
		ID:                e.ID,
		FileName:          e.SourceFile.Name,
		Size:              e.Metadata.Size,
		LastModified:      e.SourceFile.LastModified.UTC().Format(time.RFC3339Nano),
		Format:            e.Metadata.Format,
		Duration:          e.Metadata.Duration,
		Width:             e.Metadata.Width,
		Height:            e.Metadata.Height,
		Thumbnail:         e.Thumbnail,
		Preview:           e.Preview,
		HasCompressedData: len(e.CompressedData) > 0,
		UploadStatus:      e.UploadStatus.String(),
		CreatedAt:         e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// entryID extracts the unescaped {id} route parameter.
func entryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		Error(w, http.StatusBadRequest, "invalid_entry_id", "Entry ID is invalid")
		return "", false
	}
	return id, true
}

func readFormFile(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, header, nil
}

// declaredType returns the part's content type, treating the generic
// binary type as undeclared so that the decoder detects the format.
func declaredType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

func parseMillis(v string) (time.Time, error) {
	if v == "" {
		return time.UnixMilli(0), nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
