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
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeShlink(t *testing.T, shlink string) Payload {
	t.Helper()
	_, enc, ok := strings.Cut(shlink, "#shlink:/")
	require.True(t, ok, shlink)
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func TestShlService_Create_JSONContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.shl.Create(ctx, CreateRequest{
		Content:           json.RawMessage(`{"a":1}`),
		Label:             "my record",
		ExpirationSeconds: int64Ptr(3600),
	})
	require.NoError(t, err)

	assert.True(t, res.Link.Active)
	assert.Len(t, res.Link.ManifestID, 43)
	assert.Equal(t, "", res.Link.Flags.String())
	require.Len(t, res.Contents, 1)
	assert.Equal(t, fhir.WrappedContentType, res.Contents[0].ContentType)
	assert.Equal(t, "payloads/"+res.Link.ID+"/"+res.Contents[0].ID+".jwe", res.Contents[0].BlobRef)

	assert.True(t, strings.HasPrefix(res.ShlinkURL, "https://shl.example.org/viewer#shlink:/"))
	p := decodeShlink(t, res.ShlinkURL)
	assert.Equal(t, res.Payload, p)
	assert.Equal(t, "https://shl.example.org/api/shl/manifest/"+res.Link.ManifestID, p.URL)
	assert.Equal(t, res.Link.EncryptionKey, p.Key)
	assert.Equal(t, env.clock.Now().Add(time.Hour).Unix(), p.Exp)
	assert.Empty(t, p.Flag)
	assert.Equal(t, "my record", p.Label)
	assert.Equal(t, 1, p.V)
	assert.Equal(t, "https://shl.example.org/api/shl/"+res.Link.ID, res.ManagementURL)

	// конверт расшифровывается ключом из payload
	blob, err := env.store.Get(ctx, res.Contents[0].BlobRef)
	require.NoError(t, err)
	assert.EqualValues(t, len(blob), res.Contents[0].ContentLength)
	key, err := crypto.DecodeKey(p.Key)
	require.NoError(t, err)
	plain, err := env.codec.Decrypt(string(blob), key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(plain))
}

func TestShlService_Create_ValidationBeforePersistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content := json.RawMessage(`{"a":1}`)

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"U with L", CreateRequest{Content: content, DirectAccess: true, LongTerm: true}, ErrInvalidFlagCombination},
		{"U with passcode", CreateRequest{Content: content, DirectAccess: true, Passcode: "1"}, ErrInvalidFlagCombination},
		{"no source", CreateRequest{Label: "x"}, ErrMissingDataSource},
		{"null content", CreateRequest{Content: json.RawMessage("null")}, ErrMissingDataSource},
		{"categories without patient", CreateRequest{Categories: []fhir.Category{fhir.Conditions}}, ErrPatientIDRequired},
		{"label too long", CreateRequest{Content: content, Label: strings.Repeat("я", 81)}, ErrLabelTooLong},
		{"bad expiration", CreateRequest{Content: content, ExpirationSeconds: int64Ptr(0)}, ErrInvalidExpiration},
		{"invalid json", CreateRequest{Content: json.RawMessage(`{"a":`)}, ErrInvalidContent},
		{"passcode over bcrypt limit", CreateRequest{Content: content, Passcode: strings.Repeat("x", 73)}, ErrPasscodeTooLong},
		{"multibyte passcode over limit", CreateRequest{Content: content, Passcode: strings.Repeat("я", 37)}, ErrPasscodeTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.shl.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))
		})
	}

	n, err := env.repos.Links.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestShlService_Create_FlagsAndPasscode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.shl.Create(ctx, CreateRequest{
		Content:  json.RawMessage(`{}`),
		Passcode: "1234",
		LongTerm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "LP", res.Link.Flags.String())
	assert.Equal(t, "LP", res.Payload.Flag)
	require.NotNil(t, res.Link.PasscodeHash)
	assert.NotEqual(t, "1234", *res.Link.PasscodeHash)
	assert.Equal(t, 10, res.Link.RemainingAttempts())
	assert.Zero(t, res.Payload.Exp)
}

func TestShlService_Create_FileWrapping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.shl.Create(ctx, CreateRequest{
		File: &FileSource{Data: []byte("%PDF"), ContentType: "application/pdf", FileName: "lab.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	c := res.Contents[0]
	assert.Equal(t, fhir.WrappedContentType, c.ContentType)
	assert.Equal(t, "application/pdf", c.OriginalContentType)
	assert.Equal(t, "lab.pdf", c.OriginalFileName)

	key, _ := crypto.DecodeKey(res.Link.EncryptionKey)
	blob, err := env.store.Get(ctx, c.BlobRef)
	require.NoError(t, err)
	plain, err := env.codec.Decrypt(string(blob), key)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"resourceType":"DocumentReference"`)
	ct, err := env.codec.ContentType(string(blob))
	require.NoError(t, err)
	assert.Equal(t, fhir.WrappedContentType, ct)

	// FHIR-совместимый файл не оборачивается
	res, err = env.shl.Create(ctx, CreateRequest{
		File: &FileSource{Data: []byte(`{"resourceType":"Bundle"}`), ContentType: "application/fhir+json", FileName: "b.json"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/fhir+json", res.Contents[0].ContentType)
	assert.Empty(t, res.Contents[0].OriginalContentType)
}

func TestShlService_Create_Categories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.shl.Create(ctx, CreateRequest{
		PatientID:  "p-1",
		Categories: []fhir.Category{fhir.Immunizations, fhir.Conditions},
		Content:    json.RawMessage(`{"extra":true}`),
	})
	require.NoError(t, err)
	require.Len(t, res.Contents, 3)

	key, _ := crypto.DecodeKey(res.Link.EncryptionKey)
	blob, err := env.store.Get(ctx, res.Contents[0].BlobRef)
	require.NoError(t, err)
	plain, err := env.codec.Decrypt(string(blob), key)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"type":"imm"`)
}

func TestShlService_AddContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	longTerm, err := env.shl.Create(ctx, CreateRequest{Content: json.RawMessage(`{"v":1}`), LongTerm: true})
	require.NoError(t, err)

	added, err := env.shl.AddContent(ctx, longTerm.Link.ID, AddContentRequest{Content: json.RawMessage(`{"v":2}`)})
	require.NoError(t, err)
	require.Len(t, added, 1)

	// новое содержимое расшифровывается исходным ключом
	key, _ := crypto.DecodeKey(longTerm.Payload.Key)
	blob, err := env.store.Get(ctx, added[0].BlobRef)
	require.NoError(t, err)
	plain, err := env.codec.Decrypt(string(blob), key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(plain))

	res, err := env.manifest.ResolveManifest(ctx, longTerm.Link.ManifestID, ManifestRequest{Recipient: "r"}, testClient)
	require.NoError(t, err)
	assert.Equal(t, StatusCanChange, res.Status)
	assert.Len(t, res.Files, 2)

	short, err := env.shl.Create(ctx, CreateRequest{Content: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = env.shl.AddContent(ctx, short.Link.ID, AddContentRequest{Content: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrNotLongTerm)

	require.NoError(t, env.shl.Deactivate(ctx, longTerm.Link.ID))
	_, err = env.shl.AddContent(ctx, longTerm.Link.ID, AddContentRequest{Content: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrInactiveLink)

	_, err = env.shl.AddContent(ctx, "missing", AddContentRequest{Content: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestShlService_ListDetailDeactivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		env.clock.Advance(time.Second)
		res, err := env.shl.Create(ctx, CreateRequest{
			Content: json.RawMessage(`{}`),
			File:    &FileSource{Data: []byte("hi"), ContentType: "text/plain", FileName: "a.txt"},
		})
		require.NoError(t, err)
		ids = append(ids, res.Link.ID)
	}
	require.NoError(t, env.shl.Deactivate(ctx, ids[0]))
	require.NoError(t, env.shl.Deactivate(ctx, ids[0]))
	assert.ErrorIs(t, env.shl.Deactivate(ctx, "missing"), ErrLinkNotFound)

	active := true
	page, err := env.shl.List(ctx, &active, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID)
	assert.EqualValues(t, 2, page.Items[0].ContentCount)

	all, err := env.shl.List(ctx, nil, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
	assert.Len(t, all.Items, 1)

	d, err := env.shl.Detail(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, d.Active)
	require.Len(t, d.Contents, 2)
	assert.Equal(t, "text/plain", d.Contents[1].ContentType)
	assert.Equal(t, "a.txt", d.Contents[1].OriginalFileName)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "shlink")
	assert.NotContains(t, string(raw), "key")

	_, err = env.shl.Detail(ctx, "missing")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestShlService_Create_PasscodeAtBcryptLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passcode := strings.Repeat("x", crypto.MaxPasscodeBytes)

	res, err := env.shl.Create(ctx, CreateRequest{Content: json.RawMessage(`{}`), Passcode: passcode})
	require.NoError(t, err)
	assert.True(t, res.Link.Flags.Passcode)

	m, err := env.manifest.ResolveManifest(ctx, res.Link.ManifestID, ManifestRequest{Recipient: "r", Passcode: passcode}, testClient)
	require.NoError(t, err)
	assert.Len(t, m.Files, 1)
}

// failingStore отказывает на Put с номером failOn (с единицы).
type failingStore struct {
	storage.Store
	failOn int32
	puts   atomic.Int32
}

var errStoreDown = errors.New("store unavailable")

func (f *failingStore) Put(ctx context.Context, key string, data []byte) error {
	if f.puts.Add(1) == f.failOn {
		return errStoreDown
	}
	return f.Store.Put(ctx, key, data)
}

func TestShlService_Create_ContentFailureDeactivatesLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	store := &failingStore{Store: env.store, failOn: 2}
	svc := NewShlService(ShlDeps{
		Links:    env.repos.Links,
		Contents: env.repos.Contents,
		Store:    store,
		Codec:    env.codec,
		Gen:      crypto.NewGenerator(nil),
		Hasher:   crypto.NewPasscodeHasher(4),
		Ledger:   env.ledger,
	}, env.settings, zap.NewNop().Sugar())

	_, err := svc.Create(ctx, CreateRequest{
		Content: json.RawMessage(`{"a":1}`),
		File:    &FileSource{Data: []byte("%PDF"), ContentType: "application/pdf", FileName: "r.pdf"},
	})
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, IsValidationError(err))

	page, err := env.shl.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	link := page.Items[0]
	assert.False(t, link.Active)
	assert.EqualValues(t, 1, link.ContentCount)

	stored, err := env.repos.Links.GetByID(ctx, link.ID)
	require.NoError(t, err)
	_, err = env.manifest.ResolveManifest(ctx, stored.ManifestID, ManifestRequest{Recipient: "r"}, testClient)
	assert.ErrorIs(t, err, ErrInactiveLink)
}

// syntaxCheckingLinks отвергает не-UUID идентификаторы, как колонка uuid в postgres.
type syntaxCheckingLinks struct {
	repo.LinkRepository
}

func (r syntaxCheckingLinks) GetByID(ctx context.Context, id string) (*model.Link, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("ERROR: invalid input syntax for type uuid: %q (SQLSTATE 22P02)", id)
	}
	return r.LinkRepository.GetByID(ctx, id)
}

func TestShlService_NonUUIDLinkIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := NewShlService(ShlDeps{
		Links:    syntaxCheckingLinks{env.repos.Links},
		Contents: env.repos.Contents,
		Store:    env.store,
		Codec:    env.codec,
		Gen:      crypto.NewGenerator(nil),
		Hasher:   crypto.NewPasscodeHasher(4),
		Ledger:   env.ledger,
	}, env.settings, zap.NewNop().Sugar())

	_, err := svc.Detail(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrLinkNotFound)
	assert.ErrorIs(t, svc.Deactivate(ctx, "not-a-uuid"), ErrLinkNotFound)
	_, err = svc.AccessLog(ctx, "not-a-uuid", 0, 10)
	assert.ErrorIs(t, err, ErrLinkNotFound)
	_, err = svc.AddContent(ctx, "not-a-uuid", AddContentRequest{Content: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrLinkNotFound)

	res, err := svc.Create(ctx, CreateRequest{Content: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = svc.Detail(ctx, res.Link.ID)
	assert.NoError(t, err)
}
