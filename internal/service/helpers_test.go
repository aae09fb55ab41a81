package service

import (
	"SHLink/internal/crypto"
	"SHLink/internal/fhir"
	"SHLink/internal/repo"
	"SHLink/internal/storage"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// testClock — управляемые часы для проверки истечения сроков.
// Каждый вызов Now сдвигает время на микросекунду, чтобы порядок записей был строгим.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Microsecond)
	return t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	repos    *repo.Repositories
	store    storage.Store
	codec    *crypto.Codec
	clock    *testClock
	shl      *ShlService
	manifest *ManifestService
	ledger   *AccessLogService
	settings Settings
}

type fakeFetcher map[fhir.Category]string

func (f fakeFetcher) FetchBundle(_ context.Context, patientID string, c fhir.Category) ([]byte, error) {
	return []byte(`{"resourceType":"Bundle","patient":"` + patientID + `","type":"` + f[c] + `"}`), nil
}

func newTestEnv(t *testing.T, mutate ...func(*Settings)) *testEnv {
	t.Helper()
	db, err := repo.InitDB(repo.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := newTestClock()
	settings := Settings{
		PublicURL:               "https://shl.example.org",
		ViewerPath:              "/viewer",
		BlobPrefix:              storage.DefaultPrefix,
		DefaultPasscodeAttempts: 10,
		FileTokenTTL:            time.Hour,
		Now:                     clock.Now,
	}
	for _, m := range mutate {
		m(&settings)
	}

	logger := zap.NewNop().Sugar()
	repos := repo.NewRepositories(db)
	store := storage.NewDBStore(repos.Blobs)
	codec := crypto.NewCodec(true)
	gen := crypto.NewGenerator(nil)
	hasher := crypto.NewPasscodeHasher(bcrypt.MinCost)
	ledger := NewAccessLogService(repos.AccessLogs, settings, logger)

	env := &testEnv{repos: repos, store: store, codec: codec, clock: clock, ledger: ledger, settings: settings}
	env.shl = NewShlService(ShlDeps{
		Links:    repos.Links,
		Contents: repos.Contents,
		Store:    store,
		Codec:    codec,
		Gen:      gen,
		Hasher:   hasher,
		Fetcher:  fakeFetcher{fhir.Immunizations: "imm", fhir.Conditions: "cond"},
		Ledger:   ledger,
	}, settings, logger)
	env.manifest = NewManifestService(ManifestDeps{
		Links:    repos.Links,
		Contents: repos.Contents,
		Tokens:   repos.Tokens,
		Store:    store,
		Hasher:   hasher,
		Gen:      gen,
		Ledger:   ledger,
	}, settings, logger)
	return env
}

func int64Ptr(v int64) *int64 { return &v }

var testClient = ClientInfo{IP: "10.0.0.1", UserAgent: "test-agent"}
