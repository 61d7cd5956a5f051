package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestBodyLimitDeclaredLength(t *testing.T) {
	called := false
	handler := RequestID(BodyLimit(10000, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	body := strings.Repeat("x", 10001)
	req := httptest.NewRequest(http.MethodPost, "/waitlist", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestBodyLimitUndeclaredLength(t *testing.T) {
	called := false
	var rejectErr error
	reject := func(w http.ResponseWriter, r *http.Request, err error) {
		rejectErr = err
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}
	handler := BodyLimit(16, reject)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	// a complete JSON value up front must not hide the bytes after it
	req := httptest.NewRequest(http.MethodPost, "/waitlist",
		strings.NewReader(`{"a":1}`+strings.Repeat(" ", 64)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Error(t, rejectErr)
	assert.True(t, IsBodyTooLarge(rejectErr))
	assert.False(t, IsBodyTooLarge(io.ErrUnexpectedEOF))
}

func TestBodyLimitAtBoundary(t *testing.T) {
	var got []byte
	handler := BodyLimit(10, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", string(got))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSOptions{})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/waitlist", nil)
	req.Header.Set("Origin", "https://landing.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	handler := CORS(CORSOptions{AllowedOrigins: []string{" https://landing.example.com "}, MaxAge: 60})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/waitlist", nil)
	req.Header.Set("Origin", "https://landing.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://landing.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Length", rec.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodPost, "/waitlist", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientKey(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"none", nil, UnknownClient},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Real-IP": "2.2.2.2"}, "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "2.2.2.2", "X-Forwarded-For": "3.3.3.3"}, "2.2.2.2"},
		{"forwarded first element", map[string]string{"X-Forwarded-For": " 3.3.3.3 , 4.4.4.4"}, "3.3.3.3"},
		{"client ip", map[string]string{"X-Client-IP": "5.5.5.5"}, "5.5.5.5"},
		{"empty forwarded falls through", map[string]string{"X-Forwarded-For": " , 4.4.4.4", "X-Client-IP": "5.5.5.5"}, "5.5.5.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/waitlist", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientKey(req))
		})
	}
}

func TestRecoveryHidesPanic(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret internals")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret internals")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}
