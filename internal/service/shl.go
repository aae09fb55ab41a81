package service

import (
	"SHLink/internal/crypto"
	"SHLink/internal/fhir"
	"SHLink/internal/model"
	"SHLink/internal/repo"
	"SHLink/internal/storage"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileSource — загруженный файл.
type FileSource struct {
	Data        []byte
	ContentType string
	FileName    string
}

// CreateRequest — параметры создания ссылки. Нужен хотя бы один источник данных:
// Content, File или Categories (вместе с PatientID).
type CreateRequest struct {
	Content    json.RawMessage
	File       *FileSource
	PatientID  string
	Categories []fhir.Category

	Label             string
	Passcode          string
	ExpirationSeconds *int64
	SingleUse         bool
	LongTerm          bool
	DirectAccess      bool
}

// AddContentRequest — новое содержимое для долгосрочной ссылки.
type AddContentRequest struct {
	Content    json.RawMessage
	File       *FileSource
	PatientID  string
	Categories []fhir.Category
}

// Payload — полезная нагрузка shlink:/ в формате SMART Health Links.
type Payload struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Exp   int64  `json:"exp,omitempty"`
	Flag  string `json:"flag,omitempty"`
	Label string `json:"label,omitempty"`
	V     int    `json:"v"`
}

// CreateResult возвращается один раз: ключ и shlink больше никогда не выдаются.
type CreateResult struct {
	Link          *model.Link
	Contents      []model.Content
	Payload       Payload
	ShlinkURL     string
	ManagementURL string
}

// LinkSummary — ссылка в списке управления. Ключ не включается.
type LinkSummary struct {
	ID           string     `json:"id"`
	Label        string     `json:"label,omitempty"`
	Flags        string     `json:"flags"`
	Active       bool       `json:"active"`
	SingleUse    bool       `json:"singleUse"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ContentCount int64      `json:"contentCount"`
	AccessCount  int64      `json:"accessCount"`
}

// LinkPage — страница списка ссылок.
type LinkPage struct {
	Items []LinkSummary `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

type ContentSummary struct {
	ID               string    `json:"id"`
	ContentType      string    `json:"contentType"`
	OriginalFileName string    `json:"originalFileName,omitempty"`
	ContentLength    int64     `json:"contentLength"`
	CreatedAt        time.Time `json:"createdAt"`
}

type LinkDetail struct {
	ID                        string           `json:"id"`
	Label                     string           `json:"label,omitempty"`
	Flags                     string           `json:"flags"`
	Active                    bool             `json:"active"`
	SingleUse                 bool             `json:"singleUse"`
	PasscodeAttemptsRemaining *int             `json:"passcodeAttemptsRemaining,omitempty"`
	ExpiresAt                 *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt                 time.Time        `json:"createdAt"`
	UpdatedAt                 time.Time        `json:"updatedAt"`
	Contents                  []ContentSummary `json:"contents"`
	TotalAccesses             int64            `json:"totalAccesses"`
}

// ShlService создаёт ссылки и управляет ими.
type ShlService struct {
	links    repo.LinkRepository
	contents repo.ContentRepository
	store    storage.Store
	codec    *crypto.Codec
	gen      *crypto.Generator
	hasher   *crypto.PasscodeHasher
	fetcher  fhir.Fetcher
	ledger   *AccessLogService
	settings Settings
	logger   *zap.SugaredLogger
}

// ShlDeps — зависимости ShlService. Fetcher может быть nil, тогда категории недоступны.
type ShlDeps struct {
	Links    repo.LinkRepository
	Contents repo.ContentRepository
	Store    storage.Store
	Codec    *crypto.Codec
	Gen      *crypto.Generator
	Hasher   *crypto.PasscodeHasher
	Fetcher  fhir.Fetcher
	Ledger   *AccessLogService
}

func NewShlService(d ShlDeps, settings Settings, logger *zap.SugaredLogger) *ShlService {
	return &ShlService{
		links:    d.Links,
		contents: d.Contents,
		store:    d.Store,
		codec:    d.Codec,
		gen:      d.Gen,
		hasher:   d.Hasher,
		fetcher:  d.Fetcher,
		ledger:   d.Ledger,
		settings: settings.withDefaults(),
		logger:   logger,
	}
}

// contentItem — открытый текст одного содержимого перед шифрованием.
type contentItem struct {
	plaintext           []byte
	contentType         string
	fileName            string
	originalContentType string
}

func hasJSON(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func validateCreate(req CreateRequest) error {
	flags := model.Flags{LongTerm: req.LongTerm, Passcode: req.Passcode != "", DirectAccess: req.DirectAccess}
	if err := flags.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.Label) > model.MaxLabelLength {
		return ErrLabelTooLong
	}
	if len(req.Passcode) > crypto.MaxPasscodeBytes {
		return ErrPasscodeTooLong
	}
	if req.ExpirationSeconds != nil && *req.ExpirationSeconds <= 0 {
		return ErrInvalidExpiration
	}
	return validateSources(req.Content, req.File, req.PatientID, req.Categories)
}

func validateSources(content json.RawMessage, file *FileSource, patientID string, cats []fhir.Category) error {
	if !hasJSON(content) && file == nil && len(cats) == 0 {
		return ErrMissingDataSource
	}
	if len(cats) > 0 && patientID == "" {
		return ErrPatientIDRequired
	}
	if hasJSON(content) && !json.Valid(content) {
		return ErrInvalidContent
	}
	return nil
}

// collect собирает содержимое из всех источников: бандлы категорий, JSON, файл.
func (s *ShlService) collect(ctx context.Context, content json.RawMessage, file *FileSource,
	patientID string, cats []fhir.Category) ([]contentItem, error) {
	var items []contentItem

	if len(cats) > 0 {
		if s.fetcher == nil {
			return nil, fhir.ErrNotConfigured
		}
		bundles, err := fhir.FetchBundles(ctx, s.fetcher, patientID, cats)
		if err != nil {
			return nil, fmt.Errorf("fetch FHIR bundles: %w", err)
		}
		for _, b := range bundles {
			items = append(items, contentItem{plaintext: b, contentType: fhir.WrappedContentType})
		}
	}

	if hasJSON(content) {
		items = append(items, contentItem{plaintext: content, contentType: fhir.WrappedContentType})
	}

	if file != nil {
		if fhir.IsCompliantContentType(file.ContentType) {
			items = append(items, contentItem{
				plaintext:   file.Data,
				contentType: file.ContentType,
				fileName:    file.FileName,
			})
		} else {
			wrapped, err := fhir.WrapInDocumentReference(file.Data, file.ContentType, file.FileName)
			if err != nil {
				return nil, fmt.Errorf("wrap document: %w", err)
			}
			items = append(items, contentItem{
				plaintext:           wrapped,
				contentType:         fhir.WrappedContentType,
				fileName:            file.FileName,
				originalContentType: file.ContentType,
			})
		}
	}
	return items, nil
}

// Create создаёт ссылку и сохраняет зашифрованное содержимое.
// Все проверки выполняются до первой записи в хранилище.
func (s *ShlService) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	items, err := s.collect(ctx, req.Content, req.File, req.PatientID, req.Categories)
	if err != nil {
		return nil, err
	}

	key, err := s.gen.Key()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	manifestID, err := s.gen.Token()
	if err != nil {
		return nil, fmt.Errorf("generate manifest id: %w", err)
	}

	now := s.settings.now()
	link := &model.Link{
		ID:            uuid.NewString(),
		ManifestID:    manifestID,
		Label:         req.Label,
		EncryptionKey: crypto.EncodeKey(key),
		Flags:         model.Flags{LongTerm: req.LongTerm, Passcode: req.Passcode != "", DirectAccess: req.DirectAccess},
		Active:        true,
		SingleUse:     req.SingleUse,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Passcode != "" {
		hash, err := s.hasher.Hash(req.Passcode)
		if err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
		attempts := s.settings.DefaultPasscodeAttempts
		link.PasscodeHash = &hash
		link.PasscodeAttemptsRemaining = &attempts
	}
	if req.ExpirationSeconds != nil {
		exp := now.Add(time.Duration(*req.ExpirationSeconds) * time.Second)
		link.ExpiresAt = &exp
	}

	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("save link: %w", err)
	}

	contents := make([]model.Content, 0, len(items))
	for _, it := range items {
		c, err := s.storeContent(ctx, link, key, it)
		if err != nil {
			s.abandon(ctx, link.ID, err)
			return nil, err
		}
		contents = append(contents, *c)
	}

	payload, shlink, err := s.buildPayload(link)
	if err != nil {
		return nil, err
	}

	linksCreatedTotal.Inc()
	s.logger.Infow("link created", "shl_id", link.ID, "flags", link.Flags.String(), "contents", len(contents))

	return &CreateResult{
		Link:          link,
		Contents:      contents,
		Payload:       payload,
		ShlinkURL:     shlink,
		ManagementURL: s.settings.ManagementURL(link.ID),
	}, nil
}

// abandon деактивирует ссылку, содержимое которой сохранилось не полностью:
// такая ссылка не должна отдавать манифест.
func (s *ShlService) abandon(ctx context.Context, id string, cause error) {
	if _, err := s.links.Deactivate(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Errorw("failed to deactivate partially created link", "shl_id", id, "cause", cause, "error", err)
		return
	}
	linksDeactivatedTotal.WithLabelValues("create_failed").Inc()
	s.logger.Warnw("link deactivated after content failure", "shl_id", id, "error", cause)
}

// storeContent шифрует содержимое ключом ссылки, сохраняет конверт и запись о нём.
func (s *ShlService) storeContent(ctx context.Context, link *model.Link, key []byte, it contentItem) (*model.Content, error) {
	envelope, err := s.codec.Encrypt(it.plaintext, key, it.contentType)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	c := &model.Content{
		ID:                  uuid.NewString(),
		ShlID:               link.ID,
		ContentType:         it.contentType,
		OriginalFileName:    it.fileName,
		OriginalContentType: it.originalContentType,
		ContentLength:       int64(len(envelope)),
		CreatedAt:           s.settings.now(),
	}
	c.BlobRef = storage.PayloadKey(s.settings.BlobPrefix, link.ID, c.ID)

	if err := s.store.Put(ctx, c.BlobRef, []byte(envelope)); err != nil {
		return nil, fmt.Errorf("store envelope: %w", err)
	}
	if err := s.contents.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("save content record: %w", err)
	}
	contentStoredBytes.Add(float64(c.ContentLength))
	return c, nil
}

// buildPayload строит payload и shlink-URL <PUBLIC_URL><VIEWER_PATH>#shlink:/<base64url(json)>.
func (s *ShlService) buildPayload(link *model.Link) (Payload, string, error) {
	manifestURL := s.settings.ManifestURL(link.ManifestID)
	if len(manifestURL) > maxManifestURLLength {
		s.logger.Warnw("manifest URL exceeds recommended length",
			"limit", maxManifestURLLength, "length", len(manifestURL), "shl_id", link.ID)
	}

	p := Payload{
		URL:   manifestURL,
		Key:   link.EncryptionKey,
		Flag:  link.Flags.String(),
		Label: link.Label,
		V:     1,
	}
	if link.ExpiresAt != nil {
		p.Exp = link.ExpiresAt.Unix()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return Payload{}, "", fmt.Errorf("encode payload: %w", err)
	}
	shlink := s.settings.PublicURL + s.settings.ViewerPath + "#shlink:/" + base64.RawURLEncoding.EncodeToString(raw)
	return p, shlink, nil
}

// AddContent добавляет содержимое к активной долгосрочной ссылке под её исходным ключом.
func (s *ShlService) AddContent(ctx context.Context, id string, req AddContentRequest) ([]model.Content, error) {
	if err := validateSources(req.Content, req.File, req.PatientID, req.Categories); err != nil {
		return nil, err
	}
	link, err := s.getLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		return nil, ErrInactiveLink
	}
	if !link.Flags.LongTerm {
		return nil, ErrNotLongTerm
	}

	key, err := crypto.DecodeKey(link.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode link key: %w", err)
	}
	items, err := s.collect(ctx, req.Content, req.File, req.PatientID, req.Categories)
	if err != nil {
		return nil, err
	}

	out := make([]model.Content, 0, len(items))
	for _, it := range items {
		c, err := s.storeContent(ctx, link, key, it)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	s.logger.Infow("content added", "shl_id", link.ID, "contents", len(out))
	return out, nil
}

func (s *ShlService) getLink(ctx context.Context, id string) (*model.Link, error) {
	// id ссылки всегда UUID; иное значение postgres отверг бы ошибкой синтаксиса
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLinkNotFound
	}
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

// List возвращает страницу ссылок (page с нуля) с числом содержимого и успешных обращений.
func (s *ShlService) List(ctx context.Context, active *bool, page, size int) (*LinkPage, error) {
	page, size = NormalizePage(page, size)
	links, err := s.links.List(ctx, repo.LinkFilter{Active: active, Offset: page * size, Limit: size})
	if err != nil {
		return nil, err
	}
	total, err := s.links.Count(ctx, active)
	if err != nil {
		return nil, err
	}

	out := &LinkPage{Items: make([]LinkSummary, 0, len(links)), Total: total, Page: page, Size: size}
	for i := range links {
		l := &links[i]
		contentCount, err := s.contents.CountByLink(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		accessCount, err := s.ledger.CountSuccessful(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, LinkSummary{
			ID:           l.ID,
			Label:        l.Label,
			Flags:        l.Flags.String(),
			Active:       l.Active,
			SingleUse:    l.SingleUse,
			ExpiresAt:    l.ExpiresAt,
			CreatedAt:    l.CreatedAt,
			ContentCount: contentCount,
			AccessCount:  accessCount,
		})
	}
	return out, nil
}

// Detail — подробности ссылки без ключа и shlink.
func (s *ShlService) Detail(ctx context.Context, id string) (*LinkDetail, error) {
	link, err := s.getLink(ctx, id)
	if err != nil {
		return nil, err
	}
	contents, err := s.contents.ListByLink(ctx, id)
	if err != nil {
		return nil, err
	}
	accesses, err := s.ledger.CountSuccessful(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &LinkDetail{
		ID:                        link.ID,
		Label:                     link.Label,
		Flags:                     link.Flags.String(),
		Active:                    link.Active,
		SingleUse:                 link.SingleUse,
		PasscodeAttemptsRemaining: link.PasscodeAttemptsRemaining,
		ExpiresAt:                 link.ExpiresAt,
		CreatedAt:                 link.CreatedAt,
		UpdatedAt:                 link.UpdatedAt,
		Contents:                  make([]ContentSummary, 0, len(contents)),
		TotalAccesses:             accesses,
	}
	for _, c := range contents {
		ct := c.ContentType
		if c.OriginalContentType != "" {
			ct = c.OriginalContentType
		}
		d.Contents = append(d.Contents, ContentSummary{
			ID:               c.ID,
			ContentType:      ct,
			OriginalFileName: c.OriginalFileName,
			ContentLength:    c.ContentLength,
			CreatedAt:        c.CreatedAt,
		})
	}
	return d, nil
}

// Deactivate деактивирует ссылку. Повторный вызов не является ошибкой.
func (s *ShlService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.getLink(ctx, id); err != nil {
		return err
	}
	changed, err := s.links.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if changed {
		linksDeactivatedTotal.WithLabelValues("manual").Inc()
		s.logger.Infow("link deactivated", "shl_id", id)
	}
	return nil
}

// AccessLog — журнал доступа существующей ссылки.
func (s *ShlService) AccessLog(ctx context.Context, id string, page, size int) ([]model.AccessLog, error) {
	if _, err := s.getLink(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, id, page, size)
}
