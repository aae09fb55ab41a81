package handlers

import (
	"SHLink/internal/fhir"
	"SHLink/internal/service"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
// Неожиданные ошибки логируются, клиент получает только "internal error".
func writeServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, op string, err error) {
	var pe *service.PasscodeError
	switch {
	case errors.As(err, &pe):
		remaining := pe.Remaining
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or missing passcode", RemainingAttempts: &remaining})
	case service.IsValidationError(err), errors.Is(err, fhir.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDirectAccessNotEnabled):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLinkNotFound),
		errors.Is(err, service.ErrExpiredLink),
		errors.Is(err, service.ErrContentNotFound),
		errors.Is(err, service.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInactiveLink):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTokenExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, fhir.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, fhir.ErrUpstream):
		logger.Warnw(op+": FHIR upstream error", "error", err)
		writeError(w, http.StatusBadGateway, "FHIR datastore error")
	default:
		logger.Errorw(op+": service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// clientInfo — адрес и агент клиента для журнала доступа.
func clientInfo(r *http.Request) service.ClientInfo {
	ip := ""
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
	}
	return service.ClientInfo{IP: ip, UserAgent: r.UserAgent()}
}
