package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	const limit int64 = 64

	t.Run("body within the limit reaches the handler intact", func(t *testing.T) {
		body := `{"email":"user@example.com","password":"pw"}`
		var got string
		h := BodyLimit(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			got = string(raw)
			w.WriteHeader(http.StatusNoContent)
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, body, got)
	})

	t.Run("declared oversize is refused before the handler", func(t *testing.T) {
		called := false
		h := BodyLimit(limit)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(strings.Repeat("x", 65))))

		assert.False(t, called)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "payload_too_large", resp["error"])
	})

	t.Run("undeclared oversize fails while reading", func(t *testing.T) {
		var readErr error
		h := BodyLimit(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr = io.ReadAll(r.Body)
		}))

		r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(strings.Repeat("x", 200)))
		r.ContentLength = -1
		h.ServeHTTP(httptest.NewRecorder(), r)

		var tooLarge *http.MaxBytesError
		require.True(t, errors.As(readErr, &tooLarge))
		assert.Equal(t, limit, tooLarge.Limit)
	})

	t.Run("bodiless requests pass through", func(t *testing.T) {
		h := BodyLimit(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/lockouts/origin/10.0.0.1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
