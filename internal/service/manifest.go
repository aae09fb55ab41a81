package service

import (
	"SHLink/internal/crypto"
	"SHLink/internal/model"
	"SHLink/internal/repo"
	"SHLink/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Статусы манифеста.
const (
	StatusCanChange     = "can-change"
	StatusFinalized     = "finalized"
	StatusNoLongerValid = "no-longer-valid"
)

// ManifestRequest — тело запроса манифеста.
type ManifestRequest struct {
	Recipient         string
	Passcode          string
	EmbeddedLengthMax int
}

// ManifestFile — элемент манифеста: либо embedded, либо location.
type ManifestFile struct {
	ContentType string    `json:"contentType"`
	Embedded    string    `json:"embedded,omitempty"`
	Location    string    `json:"location,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type ManifestResult struct {
	Status string         `json:"status"`
	Files  []ManifestFile `json:"files"`
}

// ManifestService реализует протокол разрешения ссылок:
// манифест, прямой доступ по флагу U и одноразовое скачивание по токену.
type ManifestService struct {
	links    repo.LinkRepository
	contents repo.ContentRepository
	tokens   repo.TokenRepository
	store    storage.Store
	hasher   *crypto.PasscodeHasher
	gen      *crypto.Generator
	ledger   *AccessLogService
	settings Settings
	logger   *zap.SugaredLogger
}

type ManifestDeps struct {
	Links    repo.LinkRepository
	Contents repo.ContentRepository
	Tokens   repo.TokenRepository
	Store    storage.Store
	Hasher   *crypto.PasscodeHasher
	Gen      *crypto.Generator
	Ledger   *AccessLogService
}

func NewManifestService(d ManifestDeps, settings Settings, logger *zap.SugaredLogger) *ManifestService {
	return &ManifestService{
		links:    d.Links,
		contents: d.Contents,
		tokens:   d.Tokens,
		store:    d.Store,
		hasher:   d.Hasher,
		gen:      d.Gen,
		ledger:   d.Ledger,
		settings: settings.withDefaults(),
		logger:   logger,
	}
}

// ResolveManifest обрабатывает POST манифеста.
func (s *ManifestService) ResolveManifest(ctx context.Context, manifestID string, req ManifestRequest, client ClientInfo) (*ManifestResult, error) {
	res, err := s.resolveManifest(ctx, manifestID, req, client)
	resolutionsTotal.WithLabelValues(kindManifest, outcomeOf(err)).Inc()
	return res, err
}

func (s *ManifestService) resolveManifest(ctx context.Context, manifestID string, req ManifestRequest, client ClientInfo) (*ManifestResult, error) {
	link, err := s.links.GetByManifestID(ctx, manifestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	fail := func(reason string, err error) error {
		s.ledger.Record(ctx, link.ID, model.ActionManifestRequest, req.Recipient, client, false, reason)
		return err
	}

	if !link.Active {
		return nil, fail("link is inactive", ErrInactiveLink)
	}
	if link.IsExpired(s.settings.now()) {
		return nil, fail("link is expired", ErrExpiredLink)
	}
	if link.Flags.Passcode {
		if err := s.checkPasscode(ctx, link, req, client); err != nil {
			return nil, err
		}
	}

	contents, err := s.contents.ListByLink(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}

	// одноразовая ссылка: выдать манифест может только один запрос
	if link.SingleUse {
		claimed, err := s.links.Deactivate(ctx, link.ID)
		if err != nil {
			return nil, fmt.Errorf("deactivate single-use link: %w", err)
		}
		if !claimed {
			return nil, fail("single-use link already resolved", ErrInactiveLink)
		}
		linksDeactivatedTotal.WithLabelValues("single_use").Inc()
	}

	files := make([]ManifestFile, 0, len(contents))
	for i := range contents {
		f, err := s.manifestEntry(ctx, link, &contents[i], req.EmbeddedLengthMax)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	s.ledger.Record(ctx, link.ID, model.ActionManifestRequest, req.Recipient, client, true, "")

	status := StatusFinalized
	if link.Flags.LongTerm {
		status = StatusCanChange
	}
	return &ManifestResult{Status: status, Files: files}, nil
}

// checkPasscode проверяет пасскод. Попытка списывается одним условным обновлением
// до сравнения хеша и возвращается, если пасскод верен.
func (s *ManifestService) checkPasscode(ctx context.Context, link *model.Link, req ManifestRequest, client ClientInfo) error {
	fail := func(reason string, remaining int) error {
		passcodeFailuresTotal.Inc()
		s.ledger.Record(ctx, link.ID, model.ActionPasscodeFailure, req.Recipient, client, false, reason)
		return &PasscodeError{Remaining: remaining}
	}

	if req.Passcode == "" {
		return fail("passcode required but not provided", link.RemainingAttempts())
	}

	updated, err := s.links.DecrementPasscodeAttempts(ctx, link.ID)
	if errors.Is(err, repo.ErrNotFound) {
		s.deactivateExhausted(ctx, link.ID)
		return fail("passcode attempts exhausted", 0)
	}
	if err != nil {
		return fmt.Errorf("decrement passcode attempts: %w", err)
	}

	if updated.PasscodeHash != nil && s.hasher.Verify(req.Passcode, *updated.PasscodeHash) {
		if err := s.links.RestorePasscodeAttempt(ctx, link.ID); err != nil {
			s.logger.Errorw("failed to restore passcode attempt", "shl_id", link.ID, "error", err)
		}
		return nil
	}

	remaining := updated.RemainingAttempts()
	if remaining == 0 {
		s.deactivateExhausted(ctx, link.ID)
	}
	return fail("invalid passcode", remaining)
}

func (s *ManifestService) deactivateExhausted(ctx context.Context, id string) {
	changed, err := s.links.Deactivate(ctx, id)
	if err != nil {
		s.logger.Errorw("failed to deactivate link after passcode exhaustion", "shl_id", id, "error", err)
		return
	}
	if changed {
		linksDeactivatedTotal.WithLabelValues("passcode_exhausted").Inc()
		s.logger.Warnw("link deactivated: passcode attempts exhausted", "shl_id", id)
	}
}

// manifestEntry встраивает конверт, если он укладывается в embeddedLengthMax, иначе выдаёт токен.
func (s *ManifestService) manifestEntry(ctx context.Context, link *model.Link, c *model.Content, embeddedLengthMax int) (ManifestFile, error) {
	f := ManifestFile{ContentType: c.ContentType, LastUpdated: c.CreatedAt}

	if embeddedLengthMax > 0 && c.ContentLength <= int64(embeddedLengthMax) {
		data, err := s.store.Get(ctx, c.BlobRef)
		if err != nil {
			return ManifestFile{}, fmt.Errorf("load envelope %s: %w", c.ID, err)
		}
		f.Embedded = string(data)
		return f, nil
	}

	tokenID, err := s.gen.Token()
	if err != nil {
		return ManifestFile{}, fmt.Errorf("generate token: %w", err)
	}
	tok := &model.DownloadToken{
		ID:        tokenID,
		ContentID: c.ID,
		ShlID:     link.ID,
		ExpiresAt: s.settings.now().Add(s.settings.FileTokenTTL),
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return ManifestFile{}, fmt.Errorf("save token: %w", err)
	}
	tokensIssuedTotal.Inc()
	f.Location = s.settings.FileURL(tokenID)
	return f, nil
}

// ResolveDirectAccess отдаёт первый конверт ссылки с флагом U без манифеста.
// Неактивная ссылка на этом пути неотличима от несуществующей.
func (s *ManifestService) ResolveDirectAccess(ctx context.Context, manifestID, recipient string, client ClientInfo) ([]byte, error) {
	data, err := s.resolveDirectAccess(ctx, manifestID, recipient, client)
	resolutionsTotal.WithLabelValues(kindDirect, outcomeOf(err)).Inc()
	return data, err
}

func (s *ManifestService) resolveDirectAccess(ctx context.Context, manifestID, recipient string, client ClientInfo) ([]byte, error) {
	link, err := s.links.GetByManifestID(ctx, manifestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	fail := func(reason string, err error) ([]byte, error) {
		s.ledger.Record(ctx, link.ID, model.ActionDirectAccess, recipient, client, false, reason)
		return nil, err
	}

	if !link.Active {
		return fail("link is inactive", ErrLinkNotFound)
	}
	if link.IsExpired(s.settings.now()) {
		return fail("link is expired", ErrExpiredLink)
	}
	if !link.Flags.DirectAccess {
		return fail("direct access not enabled", ErrDirectAccessNotEnabled)
	}

	contents, err := s.contents.ListByLink(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	if len(contents) == 0 {
		return fail("link has no content", ErrContentNotFound)
	}

	data, err := s.store.Get(ctx, contents[0].BlobRef)
	if err != nil {
		return nil, fmt.Errorf("load envelope %s: %w", contents[0].ID, err)
	}

	if link.SingleUse {
		claimed, err := s.links.Deactivate(ctx, link.ID)
		if err != nil {
			return nil, fmt.Errorf("deactivate single-use link: %w", err)
		}
		if !claimed {
			return fail("single-use link already resolved", ErrLinkNotFound)
		}
		linksDeactivatedTotal.WithLabelValues("single_use").Inc()
	}

	s.ledger.Record(ctx, link.ID, model.ActionDirectAccess, recipient, client, true, "")
	return data, nil
}

// DownloadFile погашает токен и отдаёт зашифрованный конверт без расшифровки.
// Просроченный токен тоже погашается и больше не может быть использован.
func (s *ManifestService) DownloadFile(ctx context.Context, tokenID string, client ClientInfo) ([]byte, error) {
	data, err := s.downloadFile(ctx, tokenID, client)
	resolutionsTotal.WithLabelValues(kindFile, outcomeOf(err)).Inc()
	return data, err
}

func (s *ManifestService) downloadFile(ctx context.Context, tokenID string, client ClientInfo) ([]byte, error) {
	tok, err := s.tokens.Consume(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}

	if s.settings.now().After(tok.ExpiresAt) {
		s.ledger.Record(ctx, tok.ShlID, model.ActionFileDownload, "", client, false, "download token expired")
		return nil, ErrTokenExpired
	}

	c, err := s.contents.GetByID(ctx, tok.ContentID)
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", tok.ContentID, err)
	}
	data, err := s.store.Get(ctx, c.BlobRef)
	if err != nil {
		return nil, fmt.Errorf("load envelope %s: %w", c.ID, err)
	}

	s.ledger.Record(ctx, c.ShlID, model.ActionFileDownload, "", client, true, "")
	return data, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrLinkNotFound), errors.Is(err, ErrContentNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrInactiveLink):
		return outcomeInactive
	case errors.Is(err, ErrExpiredLink):
		return outcomeExpired
	case errors.Is(err, ErrPasscodeRequired):
		return outcomePasscode
	case errors.Is(err, ErrDirectAccessNotEnabled):
		return outcomeNotEnabled
	case errors.Is(err, ErrTokenNotFound):
		return outcomeTokenReused
	case errors.Is(err, ErrTokenExpired):
		return outcomeTokenExpiry
	default:
		return outcomeError
	}
}
