package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondAuthError reports an account failure using its code's fixed message.
func respondAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	code := auth.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case auth.CodeEmailInUse:
		status = http.StatusConflict
	case auth.CodeInvalidCredential:
		status = http.StatusUnauthorized
	case "":
		status = http.StatusInternalServerError
	}
	respondJSON(ctx, w, status, map[string]string{"error": auth.Message(code), "code": code})
}

// decodeJSON caps the request body and decodes it into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

const maxJSONBodyBytes = 1 << 20
