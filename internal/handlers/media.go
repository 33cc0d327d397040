package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/session"
)

// DefaultMediaMaxBytes caps uploads when MediaHandler.MaxBytes is unset.
const DefaultMediaMaxBytes = 10 << 20

// MediaHandler accepts image uploads for posts and avatars.
type MediaHandler struct {
	Storage  MediaStorage
	MaxBytes int64
	NewID    func() string
}

// Upload handles POST /api/v1/media with a multipart "file" field.
func (h MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Storage == nil {
		logger.Error("media storage unavailable")
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "media uploads are not configured"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	if actor == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	maxBytes := h.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMediaMaxBytes
	}
	// Multipart framing adds a little on top of the file itself.
	limit := maxBytes + 1<<10
	if r.ContentLength > limit {
		respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
			return
		}
		logger.Warn("invalid media upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
		return
	}

	contentType, err := sniffContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		logger.Warn("read media upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unable to read file"})
		return
	}
	if !strings.HasPrefix(contentType, "image/") {
		respondJSON(ctx, w, http.StatusUnsupportedMediaType, map[string]string{"error": "only images can be uploaded"})
		return
	}

	key := fmt.Sprintf("uploads/%s/%s%s", actor.UserID, h.newID(), extensionFor(header.Filename, contentType))
	url, err := h.Storage.Save(ctx, key, contentType, file)
	if err != nil {
		logger.Error("store media upload", "key", key, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "unable to store file"})
		return
	}

	logger.Info("media uploaded", "key", key, "userId", actor.UserID, "size", header.Size)
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"url": url})
}

func (h MediaHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

// sniffContentType inspects the first bytes of file and rewinds it. The declared type is
// only trusted when sniffing is inconclusive.
func sniffContentType(file io.ReadSeeker, declared string) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	detected := http.DetectContentType(buf[:n])
	if detected == "application/octet-stream" && declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType, nil
		}
	}
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType, nil
	}
	return detected, nil
}

func extensionFor(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
