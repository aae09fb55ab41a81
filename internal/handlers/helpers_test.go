package handlers_test

import (
	"SHLink/internal/config"
	"SHLink/internal/crypto"
	"SHLink/internal/fhir"
	"SHLink/internal/handlers"
	"SHLink/internal/repo"
	"SHLink/internal/service"
	"SHLink/internal/storage"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testPublicURL = "https://shl.example.org"

type stubFetcher struct{}

func (stubFetcher) FetchBundle(_ context.Context, patientID string, c fhir.Category) ([]byte, error) {
	return []byte(`{"resourceType":"Bundle","patient":"` + patientID + `","category":"` + string(c) + `"}`), nil
}

type testServer struct {
	router http.Handler
	codec  *crypto.Codec
	now    *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := repo.InitDB(repo.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	now := time.Now().UTC()
	ts := &testServer{codec: crypto.NewCodec(true), now: &now}

	cfg := &config.Config{BlobMaxMB: 1, PublicURL: testPublicURL, ViewerPath: "/viewer"}
	settings := service.Settings{
		PublicURL:               cfg.PublicURL,
		ViewerPath:              cfg.ViewerPath,
		BlobPrefix:              storage.DefaultPrefix,
		DefaultPasscodeAttempts: 3,
		FileTokenTTL:            time.Hour,
		Now:                     func() time.Time { return *ts.now },
	}

	logger := zap.NewNop().Sugar()
	repos := repo.NewRepositories(db)
	store := storage.NewDBStore(repos.Blobs)
	gen := crypto.NewGenerator(nil)
	hasher := crypto.NewPasscodeHasher(bcrypt.MinCost)
	ledger := service.NewAccessLogService(repos.AccessLogs, settings, logger)

	shlSvc := service.NewShlService(service.ShlDeps{
		Links:    repos.Links,
		Contents: repos.Contents,
		Store:    store,
		Codec:    ts.codec,
		Gen:      gen,
		Hasher:   hasher,
		Fetcher:  stubFetcher{},
		Ledger:   ledger,
	}, settings, logger)
	manifestSvc := service.NewManifestService(service.ManifestDeps{
		Links:    repos.Links,
		Contents: repos.Contents,
		Tokens:   repos.Tokens,
		Store:    store,
		Hasher:   hasher,
		Gen:      gen,
		Ledger:   ledger,
	}, settings, logger)

	ts.router = handlers.NewHandler(shlSvc, manifestSvc, logger, cfg).Router
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// createLink создаёт ссылку через API и возвращает ответ.
func (ts *testServer) createLink(t *testing.T, body map[string]any) handlers.CreateResponse {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/shl", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[handlers.CreateResponse](t, rr)
}

// manifestPath — путь манифеста из URL в payload.
func manifestPath(res handlers.CreateResponse) string {
	return res.Payload.URL[len(testPublicURL):]
}
