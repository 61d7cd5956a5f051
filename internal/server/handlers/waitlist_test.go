package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opposia/waitlist/internal/kv"
	"github.com/opposia/waitlist/internal/waitlist"
)

type stubService struct {
	outcome   waitlist.Outcome
	err       error
	listErr   error
	signups   []waitlist.Signup
	lastEmail string
	lastKey   string
}

func (s *stubService) Signup(ctx context.Context, email, clientKey string) (waitlist.Outcome, error) {
	s.lastEmail, s.lastKey = email, clientKey
	return s.outcome, s.err
}

func (s *stubService) List(ctx context.Context) ([]waitlist.Signup, error) {
	return s.signups, s.listErr
}

func postSignup(h *WaitlistHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/waitlist", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Signup(rec, req)
	return rec
}

func getList(h *WaitlistHandler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/waitlist", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.List(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignupResponses(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		svc     *stubService
		status  int
		code    string
		message string
	}{
		{name: "created", body: `{"email":"a@example.com"}`, svc: &stubService{outcome: waitlist.Created}, status: 200},
		{name: "duplicate", body: `{"email":"a@example.com"}`, svc: &stubService{outcome: waitlist.Duplicate}, status: 200},
		{name: "malformed", body: `{"email":`, svc: &stubService{}, status: 400, code: "INVALID_INPUT", message: "Invalid request body"},
		{name: "empty body", body: ``, svc: &stubService{}, status: 400, code: "INVALID_INPUT", message: "Invalid request body"},
		{name: "trailing text", body: `{"email":"a@b.com"} not json`, svc: &stubService{}, status: 400, code: "INVALID_INPUT", message: "Invalid request body"},
		{name: "two values", body: `{"email":"a@b.com"}{"email":"c@d.com"}`, svc: &stubService{}, status: 400, code: "INVALID_INPUT", message: "Invalid request body"},
		{name: "trailing whitespace", body: "{\"email\":\"a@example.com\"}\n  ", svc: &stubService{outcome: waitlist.Created}, status: 200},
		{name: "invalid email", body: `{"email":"x"}`, svc: &stubService{err: waitlist.ErrInvalidEmail}, status: 400, code: "VALIDATION_FAILED", message: "Valid email is required"},
		{name: "rate limited", body: `{"email":"a@example.com"}`, svc: &stubService{err: waitlist.ErrRateLimited}, status: 429, code: "RATE_LIMITED", message: "Too many requests, please try again later"},
		{name: "storage", body: `{"email":"a@example.com"}`, svc: &stubService{err: fmt.Errorf("%w: boom", waitlist.ErrStorage)}, status: 500, code: "DATABASE_ERROR", message: "Failed to process signup"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postSignup(NewWaitlistHandler(tc.svc, ""), tc.body, nil)
			require.Equal(t, tc.status, rec.Code)

			if tc.status == http.StatusOK {
				var resp SignupResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, "Successfully joined waitlist", resp.Message)
				return
			}

			body := decodeError(t, rec)
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, tc.message, body.Error.Message)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestSignupPassesEmailAndClientKey(t *testing.T) {
	svc := &stubService{outcome: waitlist.Created}
	postSignup(NewWaitlistHandler(svc, ""), `{"email":" A@Example.com "}`, map[string]string{
		"X-Forwarded-For": "203.0.113.9, 10.0.0.1",
	})

	assert.Equal(t, " A@Example.com ", svc.lastEmail)
	assert.Equal(t, "203.0.113.9", svc.lastKey)

	svc = &stubService{err: waitlist.ErrInvalidEmail}
	rec := postSignup(NewWaitlistHandler(svc, ""), `{"email":42}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", svc.lastEmail)
	assert.Equal(t, "unknown", svc.lastKey)
}

func TestListRequiresConfiguredSecret(t *testing.T) {
	h := NewWaitlistHandler(&stubService{}, "")

	for _, auth := range []string{"", "Bearer ", "Bearer anything"} {
		rec := getList(h, auth)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "auth %q", auth)
	}
}

func TestListRejectsBadCredentials(t *testing.T) {
	h := NewWaitlistHandler(&stubService{}, "s3cret")

	for _, auth := range []string{"", "s3cret", "Bearer wrong", "Bearer s3cret2", "bearer s3cret", "Basic s3cret"} {
		rec := getList(h, auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "auth %q", auth)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error.Code)
	}
}

func TestListReturnsSignups(t *testing.T) {
	svc := &stubService{signups: []waitlist.Signup{
		{Email: "a@example.com", Timestamp: "2025-01-01T00:00:00.000Z"},
		{Email: "b@example.com", Timestamp: "2025-01-02T00:00:00.000Z"},
	}}
	rec := getList(NewWaitlistHandler(svc, "s3cret"), "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Signups, 2)
}

func TestListReadFailure(t *testing.T) {
	svc := &stubService{listErr: errors.New("scan failed")}
	rec := getList(NewWaitlistHandler(svc, "s3cret"), "Bearer s3cret")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch signups", decodeError(t, rec).Error.Message)
}

func TestSignupEndToEndWithService(t *testing.T) {
	mem := kv.NewMemory()
	svc := waitlist.NewService(waitlist.Options{
		Store:   waitlist.NewStore(mem, nil),
		Limiter: waitlist.NewMemoryLimiter(3, 5*time.Minute),
	})
	h := NewWaitlistHandler(svc, "s3cret")
	headers := map[string]string{"CF-Connecting-IP": "198.51.100.7"}

	assert.Equal(t, http.StatusOK, postSignup(h, `{"email":"Carol@Example.com"}`, headers).Code)
	assert.Equal(t, http.StatusOK, postSignup(h, `{"email":"carol@example.com"}`, headers).Code)
	assert.Equal(t, http.StatusBadRequest, postSignup(h, `{"email":"not-an-email"}`, headers).Code)
	assert.Equal(t, http.StatusOK, postSignup(h, `{"email":"dave@example.com"}`, headers).Code)
	assert.Equal(t, http.StatusTooManyRequests, postSignup(h, `{"email":"erin@example.com"}`, headers).Code)

	rec := getList(h, "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Signups, resp.Count)
	assert.Equal(t, 2, mem.Len())
}
