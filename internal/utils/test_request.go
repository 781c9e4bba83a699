package utils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRequest выполняет запрос к тестовому серверу и возвращает ответ с прочитанным телом
func TestRequest(t *testing.T, ts *httptest.Server, method, path string, headers map[string]string, body io.Reader) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)

	req.Header.Set("Accept-Encoding", "identity")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(respBody)
}

// JSONBody кодирует data для тела тестового запроса
func JSONBody(t *testing.T, data any) io.Reader {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	return bytes.NewReader(raw)
}
