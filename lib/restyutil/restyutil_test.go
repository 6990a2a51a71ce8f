package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestDumpExchanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Archive", "test")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New().SetBaseURL(server.URL)
	DumpExchanges(client, "alpha", output)

	_, err = client.R().SetQueryParam("page", "2").Get("/search")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, "alpha-1.txt"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "GET "+server.URL+"/search?page=2")
	require.Contains(t, string(contents), "200 ")
	require.Contains(t, string(contents), "X-Archive: test")
	require.Contains(t, string(contents), `{"ok": true}`)
}

func TestDumpExchangesNilOutput(t *testing.T) {
	client := resty.New()
	DumpExchanges(client, "alpha", nil)
}

func TestFilesystemOutputRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := NewFilesystemOutput(path)
	require.Error(t, err)
}

func TestFilesystemOutputKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes"), []byte("keep"), 0o644))

	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	require.Equal(t, dir, output.Dir())
	output.Write("../escape.txt", "x")

	_, err = os.Stat(filepath.Join(dir, "notes"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	require.NoError(t, err)
}
