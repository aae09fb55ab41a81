package handlers

import (
	"SHLink/internal/config"
	"SHLink/internal/fhir"
	"SHLink/internal/model"
	"SHLink/internal/service"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LinkHandler — API управления ссылками.
type LinkHandler struct {
	ShlService *service.ShlService
	Logger     *zap.SugaredLogger
	Config     *config.Config
}

// NewLinkHandler создаёт хендлер управления ссылками
func NewLinkHandler(shlService *service.ShlService, logger *zap.SugaredLogger, cfg *config.Config) *LinkHandler {
	return &LinkHandler{ShlService: shlService, Logger: logger, Config: cfg}
}

// CreateOptions — параметры ссылки. В multipart-запросе передаются частью options.
type CreateOptions struct {
	PatientID           string          `json:"patientId,omitempty"`
	Categories          []fhir.Category `json:"categories,omitempty"`
	Label               string          `json:"label,omitempty"`
	Passcode            string          `json:"passcode,omitempty"`
	ExpirationInSeconds *int64          `json:"expirationInSeconds,omitempty"`
	SingleUse           bool            `json:"singleUse"`
	LongTerm            bool            `json:"longTerm"`
	DirectAccess        bool            `json:"directAccess"`
}

// CreateRequest — JSON-запрос создания ссылки.
type CreateRequest struct {
	Content json.RawMessage `json:"content,omitempty"`
	CreateOptions
}

// CreateResponse — единственный ответ, в котором выдаются ключ и shlink.
type CreateResponse struct {
	ID            string                   `json:"id"`
	ShlinkURL     string                   `json:"shlinkUrl"`
	ManagementURL string                   `json:"managementUrl"`
	Payload       service.Payload          `json:"payload"`
	Label         string                   `json:"label,omitempty"`
	Flags         string                   `json:"flags"`
	ExpiresAt     *time.Time               `json:"expiresAt,omitempty"`
	SingleUse     bool                     `json:"singleUse"`
	Contents      []service.ContentSummary `json:"contents"`
}

// AddContentRequest — JSON-запрос добавления содержимого.
type AddContentRequest struct {
	Content    json.RawMessage `json:"content,omitempty"`
	PatientID  string          `json:"patientId,omitempty"`
	Categories []fhir.Category `json:"categories,omitempty"`
}

type AccessLogEntry struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	Recipient     string    `json:"recipient,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type AccessLogPage struct {
	Items []AccessLogEntry `json:"items"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// Create POST /api/shl: JSON или multipart (file + options).
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest

	if isMultipart(r) {
		file, opts, ok := h.readUpload(w, r, "Create")
		if !ok {
			return
		}
		req = createRequestFromOptions(opts)
		req.File = file
	} else {
		var body CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.Logger.Warnw("Create: invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, decodeErrorMessage(err))
			return
		}
		req = createRequestFromOptions(body.CreateOptions)
		req.Content = body.Content
	}

	res, err := h.ShlService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.Logger, "Create", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateResponse{
		ID:            res.Link.ID,
		ShlinkURL:     res.ShlinkURL,
		ManagementURL: res.ManagementURL,
		Payload:       res.Payload,
		Label:         res.Link.Label,
		Flags:         res.Link.Flags.String(),
		ExpiresAt:     res.Link.ExpiresAt,
		SingleUse:     res.Link.SingleUse,
		Contents:      contentSummaries(res.Contents),
	})
}

// List GET /api/shl?active=&page=&size=
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var active *bool
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		active = &b
	}
	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	res, err := h.ShlService.List(r.Context(), active, page, size)
	if err != nil {
		writeServiceError(w, h.Logger, "List", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Detail GET /api/shl/{id}
func (h *LinkHandler) Detail(w http.ResponseWriter, r *http.Request) {
	res, err := h.ShlService.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, "Detail", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Deactivate DELETE /api/shl/{id}
func (h *LinkHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.ShlService.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Logger, "Deactivate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AccessLog GET /api/shl/{id}/access-log?page=&size=
func (h *LinkHandler) AccessLog(w http.ResponseWriter, r *http.Request) {
	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}
	logs, err := h.ShlService.AccessLog(r.Context(), chi.URLParam(r, "id"), page, size)
	if err != nil {
		writeServiceError(w, h.Logger, "AccessLog", err)
		return
	}

	items := make([]AccessLogEntry, 0, len(logs))
	for _, l := range logs {
		items = append(items, AccessLogEntry{
			ID:            l.ID,
			Action:        string(l.Action),
			Recipient:     l.Recipient,
			IPAddress:     l.IPAddress,
			UserAgent:     l.UserAgent,
			Success:       l.Success,
			FailureReason: l.FailureReason,
			CreatedAt:     l.CreatedAt,
		})
	}
	page, size = service.NormalizePage(page, size)
	writeJSON(w, http.StatusOK, AccessLogPage{Items: items, Page: page, Size: size})
}

// AddContent POST /api/shl/{id}/content: JSON или multipart file.
func (h *LinkHandler) AddContent(w http.ResponseWriter, r *http.Request) {
	var req service.AddContentRequest

	if isMultipart(r) {
		file, opts, ok := h.readUpload(w, r, "AddContent")
		if !ok {
			return
		}
		req = service.AddContentRequest{File: file, PatientID: opts.PatientID, Categories: opts.Categories}
	} else {
		var body AddContentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.Logger.Warnw("AddContent: invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, decodeErrorMessage(err))
			return
		}
		req = service.AddContentRequest{Content: body.Content, PatientID: body.PatientID, Categories: body.Categories}
	}

	contents, err := h.ShlService.AddContent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, h.Logger, "AddContent", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contents": contentSummaries(contents)})
}

// readUpload разбирает multipart-запрос: часть file обязательна, options — JSON с параметрами.
func (h *LinkHandler) readUpload(w http.ResponseWriter, r *http.Request, op string) (*service.FileSource, CreateOptions, bool) {
	var opts CreateOptions

	// Лимит общего тела запроса
	maxFile := h.Config.BlobMaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+1*1024*1024)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return nil, opts, false
		}
		h.Logger.Warnw(op+": invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, opts, false
	}

	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			h.Logger.Warnw(op+": invalid options", "error", err)
			writeError(w, http.StatusBadRequest, decodeErrorMessage(err))
			return nil, opts, false
		}
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		h.Logger.Warnw(op+": missing file", "error", err)
		writeError(w, http.StatusBadRequest, "missing file")
		return nil, opts, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.Logger.Warnw(op+": failed to read file", "error", err)
		writeError(w, http.StatusBadRequest, "failed to read file")
		return nil, opts, false
	}
	if int64(len(data)) > maxFile {
		h.Logger.Warnw(op+": payload too large", "size", len(data), "limit", maxFile)
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return nil, opts, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &service.FileSource{Data: data, ContentType: contentType, FileName: header.Filename}, opts, true
}

func createRequestFromOptions(o CreateOptions) service.CreateRequest {
	return service.CreateRequest{
		PatientID:         o.PatientID,
		Categories:        o.Categories,
		Label:             o.Label,
		Passcode:          o.Passcode,
		ExpirationSeconds: o.ExpirationInSeconds,
		SingleUse:         o.SingleUse,
		LongTerm:          o.LongTerm,
		DirectAccess:      o.DirectAccess,
	}
}

func contentSummaries(contents []model.Content) []service.ContentSummary {
	out := make([]service.ContentSummary, 0, len(contents))
	for _, c := range contents {
		ct := c.ContentType
		if c.OriginalContentType != "" {
			ct = c.OriginalContentType
		}
		out = append(out, service.ContentSummary{
			ID:               c.ID,
			ContentType:      ct,
			OriginalFileName: c.OriginalFileName,
			ContentLength:    c.ContentLength,
			CreatedAt:        c.CreatedAt,
		})
	}
	return out
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// pageParams читает page (с нуля) и size. Пустые значения оставляют умолчания сервиса.
func pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	page, size := 0, 0
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return 0, 0, false
		}
		page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "size must be a positive integer")
			return 0, 0, false
		}
		size = n
	}
	return page, size, true
}

func decodeErrorMessage(err error) string {
	if errors.Is(err, fhir.ErrUnknownCategory) {
		return err.Error()
	}
	return "invalid request"
}
