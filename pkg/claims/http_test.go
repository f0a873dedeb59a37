package claims

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, store Store) *httptest.Server {
	t.Helper()
	handler := NewHTTPHandler(newTestValidator(), NewImporter(store, nil, 0), store, 1<<20)
	router := mux.NewRouter()
	handler.Register(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func multipartUpload(t *testing.T, csv string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "claims.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestHandleImport(t *testing.T) {
	store := NewMemoryStore()
	server := newTestServer(t, store)

	body, contentType := multipartUpload(t, upload(
		"30001|Jane Doe|1000.50|600.00|denied|Blue Shield|2024-01-15|99213|Not medically necessary",
		"30002|John Smith|500.00|500.00|approved|Aetna|2024-02-03||N/A",
	), map[string]string{"mode": "overwrite"})

	resp, err := http.Post(server.URL+"/claims/import", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Rejected)

	ds, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Claims, 2)
}

func TestHandleImportSchemaErrorIsBadRequest(t *testing.T) {
	server := newTestServer(t, NewMemoryStore())

	body, contentType := multipartUpload(t, "id|patient_name\n30001|Jane Doe", nil)
	resp, err := http.Post(server.URL+"/claims/import", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotEmpty(t, payload["error"])
}

func TestHandleImportEmptyUploadIsBadRequest(t *testing.T) {
	server := newTestServer(t, NewMemoryStore())

	body, contentType := multipartUpload(t, uploadHeader+"\n", nil)
	resp, err := http.Post(server.URL+"/claims/import", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleImportUnknownModeIsBadRequest(t *testing.T) {
	server := newTestServer(t, NewMemoryStore())

	body, contentType := multipartUpload(t, upload(
		"30001|Jane Doe|100.00|0.00|pending|Aetna|2024-01-15||N/A",
	), map[string]string{"mode": "merge"})
	resp, err := http.Post(server.URL+"/claims/import", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleList(t *testing.T) {
	store := seedStore(t,
		testClaim("30001", "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15"),
		testClaim("30002", "John Smith", 20000, 0, StatusPending, "Cigna", "2024-01-16"),
	)
	server := newTestServer(t, store)

	resp, err := http.Get(server.URL + "/claims?search=jane")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Claims, 1)
	assert.Equal(t, "30001", page.Claims[0].ID)
	assert.Equal(t, 1, page.Total)
}

func TestHandleListRejectsUnknownStatus(t *testing.T) {
	server := newTestServer(t, NewMemoryStore())

	resp, err := http.Get(server.URL + "/claims?status=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleExport(t *testing.T) {
	store := seedStore(t,
		testClaim("30001", "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15"),
	)
	server := newTestServer(t, store)

	resp, err := http.Get(server.URL + "/claims/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, uploadHeader, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "30001|Jane Doe|100.00|0.00|pending|Aetna|2024-01-15|"))
}
