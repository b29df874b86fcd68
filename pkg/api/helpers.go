package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/galxe/blobs3/pkg/types"
)

var errInvalidBlobPath = errors.New("blob path must be <bucket>/<key>")

func writeJSON(w http.ResponseWriter, status int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("[API] failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err string) {
	writeJSON(w, status, types.ErrorResponse{
		Status:    "error",
		Error:     err,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// splitBlobPath splits "bucket/key/..." into the bucket and the object key
func splitBlobPath(path string) (string, string, error) {
	bucket, key, found := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", errInvalidBlobPath, path)
	}
	return bucket, key, nil
}
