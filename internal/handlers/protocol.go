package handlers

import (
	"SHLink/internal/service"
	"SHLink/internal/storage"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// retryAfterSeconds — подсказка клиенту, когда повторить запрос манифеста с can-change.
const retryAfterSeconds = "60"

// ProtocolHandler обслуживает публичную часть протокола: манифест, прямой доступ и скачивание.
type ProtocolHandler struct {
	ManifestService *service.ManifestService
	Logger          *zap.SugaredLogger
}

// NewProtocolHandler создаёт хендлер протокола
func NewProtocolHandler(manifestService *service.ManifestService, logger *zap.SugaredLogger) *ProtocolHandler {
	return &ProtocolHandler{ManifestService: manifestService, Logger: logger}
}

// maxManifestRequestBytes — предел тела запроса манифеста.
const maxManifestRequestBytes = 8 << 10

// ManifestRequest — тело POST манифеста.
type ManifestRequest struct {
	Recipient         string `json:"recipient"`
	Passcode          string `json:"passcode,omitempty"`
	EmbeddedLengthMax int    `json:"embeddedLengthMax,omitempty"`
}

// Manifest POST /api/shl/manifest/{manifestId}
func (h *ProtocolHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	manifestID := chi.URLParam(r, "manifestId")

	r.Body = http.MaxBytesReader(w, r.Body, maxManifestRequestBytes)
	var req ManifestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.Logger.Warnw("Manifest: invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Recipient) == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}
	if req.EmbeddedLengthMax < 0 {
		writeError(w, http.StatusBadRequest, "embeddedLengthMax must not be negative")
		return
	}

	res, err := h.ManifestService.ResolveManifest(r.Context(), manifestID, service.ManifestRequest{
		Recipient:         req.Recipient,
		Passcode:          req.Passcode,
		EmbeddedLengthMax: req.EmbeddedLengthMax,
	}, clientInfo(r))
	if errors.Is(err, service.ErrInactiveLink) {
		writeJSON(w, http.StatusOK, service.ManifestResult{Status: service.StatusNoLongerValid, Files: []service.ManifestFile{}})
		return
	}
	if err != nil {
		writeServiceError(w, h.Logger, "Manifest", err)
		return
	}

	if res.Status == service.StatusCanChange {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, http.StatusOK, res)
}

// DirectAccess GET /api/shl/manifest/{manifestId}?recipient= для ссылок с флагом U
func (h *ProtocolHandler) DirectAccess(w http.ResponseWriter, r *http.Request) {
	manifestID := chi.URLParam(r, "manifestId")
	recipient := r.URL.Query().Get("recipient")
	if strings.TrimSpace(recipient) == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	data, err := h.ManifestService.ResolveDirectAccess(r.Context(), manifestID, recipient, clientInfo(r))
	if err != nil {
		writeServiceError(w, h.Logger, "DirectAccess", err)
		return
	}
	writeEnvelope(w, data)
}

// File GET /api/shl/file/{tokenId}
func (h *ProtocolHandler) File(w http.ResponseWriter, r *http.Request) {
	data, err := h.ManifestService.DownloadFile(r.Context(), chi.URLParam(r, "tokenId"), clientInfo(r))
	if err != nil {
		writeServiceError(w, h.Logger, "File", err)
		return
	}
	writeEnvelope(w, data)
}

func writeEnvelope(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", storage.EnvelopeContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
