package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"SHLink/internal/config"
	"SHLink/internal/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_JSONContent(t *testing.T) {
	dir := t.TempDir()
	contentPath := filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(contentPath, []byte(`{"resourceType":"Bundle"}`), 0o600))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/shl", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Vaccines", body["label"])
		assert.Equal(t, float64(3600), body["expirationInSeconds"])
		assert.Equal(t, true, body["longTerm"])
		assert.Equal(t, "Bundle", body["content"].(map[string]any)["resourceType"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"l1","flags":"L","shlinkUrl":"https://x/viewer#shlink:/abc","managementUrl":"https://x/api/shl/l1","contents":[{"id":"c1"}]}`))
	}))
	defer ts.Close()

	cfg := &config.Config{ServerURL: ts.URL}
	out := withStdoutCapture(t, func() {
		err := (createCmd{}).Run(context.Background(), cfg, []string{"--json", contentPath, "--label", "Vaccines", "--expires", "3600", "--long-term"})
		require.NoError(t, err)
	})
	assert.Contains(t, out, "ID:         l1")
	assert.Contains(t, out, "https://x/viewer#shlink:/abc")
}

func TestCreate_FileUpload(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o600))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4", string(data))
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		assert.Contains(t, r.FormValue("options"), `"passcode":"1234"`)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"l2","flags":"P"}`))
	}))
	defer ts.Close()

	out := withStdoutCapture(t, func() {
		require.NoError(t, (createCmd{}).Run(context.Background(), &config.Config{ServerURL: ts.URL}, []string{"--file", pdf, "--passcode", "1234"}))
	})
	assert.Contains(t, out, "l2")
}

func TestCreate_Usage(t *testing.T) {
	cfg := &config.Config{ServerURL: "http://127.0.0.1:1"}
	assert.Equal(t, ErrUsage, (createCmd{}).Run(context.Background(), cfg, nil))
	assert.Equal(t, ErrUsage, (createCmd{}).Run(context.Background(), cfg, []string{"--json", "a", "--file", "b"}))
	assert.Equal(t, ErrUsage, (createCmd{}).Run(context.Background(), cfg, []string{"--bogus"}))
}

func TestList_Show_Deactivate_Logs(t *testing.T) {
	deleted := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/shl":
			assert.Equal(t, "true", r.URL.Query().Get("active"))
			_, _ = w.Write([]byte(`{"items":[{"id":"l1","flags":"P","active":true,"contentCount":2,"accessCount":5,"label":"Labs"}],"total":1,"page":0,"size":20}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/shl/l1":
			_, _ = w.Write([]byte(`{"id":"l1","flags":"P","active":true,"passcodeAttemptsRemaining":7,"totalAccesses":5,"contents":[{"id":"c1","contentType":"application/pdf","contentLength":120,"originalFileName":"a.pdf"}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/shl/l1":
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/api/shl/l1/access-log":
			assert.Equal(t, "10", r.URL.Query().Get("size"))
			_, _ = w.Write([]byte(`{"items":[{"action":"PASSCODE_FAILURE","recipient":"clinic","success":false,"failureReason":"invalid passcode","createdAt":"2026-01-02T03:04:05Z"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"link not found"}`))
		}
	}))
	defer ts.Close()
	cfg := &config.Config{ServerURL: ts.URL}
	ctx := context.Background()

	out := withStdoutCapture(t, func() { require.NoError(t, (listCmd{}).Run(ctx, cfg, []string{"--active", "true"})) })
	assert.Contains(t, out, "l1")
	assert.Contains(t, out, "accesses=5")
	assert.Contains(t, out, "Всего: 1")

	out = withStdoutCapture(t, func() { require.NoError(t, (showCmd{}).Run(ctx, cfg, []string{"l1"})) })
	assert.Contains(t, out, "Attempts:  7")
	assert.Contains(t, out, "a.pdf")

	withStdoutCapture(t, func() { require.NoError(t, (deactivateCmd{}).Run(ctx, cfg, []string{"l1"})) })
	assert.True(t, deleted)

	out = withStdoutCapture(t, func() { require.NoError(t, (logsCmd{}).Run(ctx, cfg, []string{"l1", "--size", "10"})) })
	assert.Contains(t, out, "PASSCODE_FAILURE")
	assert.Contains(t, out, "FAIL: invalid passcode")

	err := (showCmd{}).Run(ctx, cfg, []string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link not found")

	assert.Equal(t, ErrUsage, (showCmd{}).Run(ctx, cfg, nil))
	assert.Equal(t, ErrUsage, (listCmd{}).Run(ctx, cfg, []string{"--active", "maybe"}))
	assert.Equal(t, ErrUsage, (logsCmd{}).Run(ctx, cfg, nil))
}

func encodeShlink(t *testing.T, p payload) string {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return "https://viewer.example/#shlink:/" + base64.RawURLEncoding.EncodeToString(raw)
}

func TestParseShlink(t *testing.T) {
	p, err := parseShlink(encodeShlink(t, payload{URL: "https://x/m", Key: "k", Flag: "P", V: 1}))
	require.NoError(t, err)
	assert.Equal(t, "https://x/m", p.URL)
	assert.Equal(t, "P", p.Flag)

	_, err = parseShlink("https://example.org/")
	assert.ErrorIs(t, err, errInvalidShlink)
	_, err = parseShlink("shlink:/!!!")
	assert.ErrorIs(t, err, errInvalidShlink)
	_, err = parseShlink(encodeShlink(t, payload{URL: "https://x/m"}))
	assert.ErrorIs(t, err, errInvalidShlink)
}

func TestResolve_ManifestWithEmbeddedAndLocation(t *testing.T) {
	key, err := crypto.NewGenerator(nil).Key()
	require.NoError(t, err)
	codec := crypto.NewCodec(true)
	embedded, err := codec.Encrypt([]byte(`{"n":1}`), key, "application/fhir+json")
	require.NoError(t, err)
	located, err := codec.Encrypt([]byte(`{"n":2}`), key, "application/fhir+json")
	require.NoError(t, err)

	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/shl/manifest/m1":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "1234", body["passcode"])
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(manifestResponse{Status: "finalized", Files: []manifestFile{
				{ContentType: "application/fhir+json", Embedded: embedded},
				{ContentType: "application/fhir+json", Location: ts.URL + "/api/shl/file/t1"},
			}})
		case "/api/shl/file/t1":
			w.Header().Set("Content-Type", "application/jose")
			_, _ = w.Write([]byte(located))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	link := encodeShlink(t, payload{URL: ts.URL + "/api/shl/manifest/m1", Key: crypto.EncodeKey(key), Flag: "P", V: 1})

	assert.ErrorIs(t, (resolveCmd{}).Run(context.Background(), nil, []string{link}), errPasscodeRequired)

	dir := t.TempDir()
	out := withStdoutCapture(t, func() {
		require.NoError(t, (resolveCmd{}).Run(context.Background(), nil, []string{link, "--passcode", "1234", "--out", dir}))
	})
	assert.Contains(t, out, "Status: finalized, files: 2")

	first, err := os.ReadFile(filepath.Join(dir, "shl-file-1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(first))
	second, err := os.ReadFile(filepath.Join(dir, "shl-file-2.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(second))
}

func TestResolve_DirectAccess(t *testing.T) {
	key, err := crypto.NewGenerator(nil).Key()
	require.NoError(t, err)
	envelope, err := crypto.NewCodec(false).Encrypt([]byte(`{"u":true}`), key, "application/fhir+json")
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "viewer", r.URL.Query().Get("recipient"))
		_, _ = w.Write([]byte(envelope))
	}))
	defer ts.Close()

	link := encodeShlink(t, payload{URL: ts.URL + "/api/shl/manifest/m2", Key: crypto.EncodeKey(key), Flag: "U", V: 1})
	out := withStdoutCapture(t, func() {
		require.NoError(t, (resolveCmd{}).Run(context.Background(), nil, []string{link, "--recipient", "viewer"}))
	})
	assert.True(t, strings.Contains(out, `{"u":true}`), out)
}
