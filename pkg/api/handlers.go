package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/common"
	"github.com/galxe/blobs3/pkg/storage"
	"github.com/galxe/blobs3/pkg/types"
	"github.com/galxe/blobs3/pkg/version"
)

const defaultContentType = "application/octet-stream"

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "OK")
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Version)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chains.HealthStatus())
}

// Authorize is a dry run of the authorization decision
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req types.AuthorizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "[API] Invalid request body")
		return
	}
	accessType, err := access.ParseAccessType(req.Access)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rule, ok, err := h.engine.Authorize(r.Context(), req.Address, accessType, req.Path)
	if err != nil {
		h.writeAuthorizeError(w, r, err)
		return
	}
	resp := types.AuthorizeResponse{Authorized: ok}
	if ok {
		resp.Rule = &rule
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetBlob(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	bucket, key, err := splitBlobPath(path)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	if !h.authorize(w, r, user, access.AccessRead, path) {
		return
	}

	obj, err := h.store.Get(r.Context(), bucket, key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "[API] Object not found")
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("[API] failed to read object")
		writeError(w, r, http.StatusBadGateway, "[API] Failed to read object")
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("[API] failed to write object")
	}
}

// PutBlob creates the object when it is absent and updates it otherwise.
// The access checked follows the same rule.
func (h *Handler) PutBlob(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	bucket, key, err := splitBlobPath(path)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	exists, err := h.store.Exists(r.Context(), bucket, key)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("[API] failed to stat object")
		writeError(w, r, http.StatusBadGateway, "[API] Failed to stat object")
		return
	}
	accessType := access.AccessCreate
	if exists {
		accessType = access.AccessUpdate
	}
	if !h.authorize(w, r, user, accessType, path) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "[API] Object too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "[API] Failed to read body")
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	if err := h.store.Put(r.Context(), bucket, key, body, contentType); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("[API] failed to write object")
		writeError(w, r, http.StatusBadGateway, "[API] Failed to write object")
		return
	}

	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, types.PutObjectResponse{
		Bucket:  bucket,
		Key:     key,
		Access:  string(accessType),
		Created: !exists,
	})
}

// authorize writes the failure response and returns false unless user may
// perform accessType on path
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, user string, accessType access.AccessType, path string) bool {
	_, ok, err := h.engine.Authorize(r.Context(), user, accessType, path)
	if err != nil {
		h.writeAuthorizeError(w, r, err)
		return false
	}
	if !ok {
		writeError(w, r, http.StatusForbidden, "[API] Access denied")
		return false
	}
	return true
}

func (h *Handler) writeAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidAddress), errors.Is(err, access.ErrInvalidConfig):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "[API] Request cancelled")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("[API] authorization failed")
		writeError(w, r, http.StatusInternalServerError, "[API] Authorization failed")
	}
}
