package fhir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"go.uber.org/zap"
)

const signingService = "healthlake"

var (
	ErrNotConfigured = errors.New("HealthLake datastore endpoint is not configured")
	ErrUpstream      = errors.New("FHIR datastore request failed")
)

// Fetcher получает FHIR-бандл пациента по категории.
type Fetcher interface {
	FetchBundle(ctx context.Context, patientID string, category Category) ([]byte, error)
}

// HealthLakeConfig — параметры datastore AWS HealthLake.
// Credentials == nil — цепочка учётных данных AWS по умолчанию.
type HealthLakeConfig struct {
	Endpoint    string
	Region      string
	Credentials *credentials.Credentials
	HTTPClient  *http.Client
}

// HealthLakeClient — клиент FHIR R4 API HealthLake с подписью запросов SigV4.
type HealthLakeClient struct {
	endpoint string
	region   string
	signer   *v4.Signer
	http     *http.Client
	logger   *zap.SugaredLogger
}

func NewHealthLakeClient(cfg HealthLakeConfig, logger *zap.SugaredLogger) (*HealthLakeClient, error) {
	creds := cfg.Credentials
	if creds == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		creds = sess.Config.Credentials
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HealthLakeClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		region:   cfg.Region,
		signer:   v4.NewSigner(creds),
		http:     httpClient,
		logger:   logger,
	}, nil
}

// FetchBundle выполняет поиск GET <endpoint>/r4/<ResourceType>?patient=Patient/<id>.
func (c *HealthLakeClient) FetchBundle(ctx context.Context, patientID string, category Category) ([]byte, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("patient", "Patient/"+patientID)
	u := c.endpoint + "/r4/" + category.ResourceType() + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")
	if _, err := c.signer.Sign(req, bytes.NewReader(nil), signingService, c.region, time.Now()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	c.logger.Debugw("fetching FHIR bundle", "category", category.DisplayName(), "patient", patientID)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		c.logger.Errorw("FHIR bundle fetch failed",
			"category", category.DisplayName(), "patient", patientID, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, category.ResourceType(), resp.StatusCode)
	}
	return body, nil
}
