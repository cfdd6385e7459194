package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/messaging/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, scopes ...string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestAuth(t *testing.T) {
	valid := signToken(t, testSecret, "user-1")
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		target     string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid bearer", http.MethodGet, "/", "Bearer " + valid, http.StatusOK, "user-1"},
		{"lowercase scheme", http.MethodGet, "/", "bearer " + valid, http.StatusOK, "user-1"},
		{"query token on GET", http.MethodGet, "/?access_token=" + valid, "", http.StatusOK, "user-1"},
		{"query token on POST", http.MethodPost, "/?access_token=" + valid, "", http.StatusUnauthorized, ""},
		{"missing header", http.MethodGet, "/", "", http.StatusUnauthorized, ""},
		{"wrong scheme", http.MethodGet, "/", "Basic " + valid, http.StatusUnauthorized, ""},
		{"wrong secret", http.MethodGet, "/", "Bearer " + signToken(t, "other", "user-1"), http.StatusUnauthorized, ""},
		{"other algorithm", http.MethodGet, "/", "Bearer " + hs512, http.StatusUnauthorized, ""},
		{"missing subject", http.MethodGet, "/", "Bearer " + signToken(t, testSecret, ""), http.StatusUnauthorized, ""},
	}

	h := Auth(testSecret)(echoUser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	h := Auth(testSecret)(RequireScope(ScopeNotificationsWrite)(echoUser()))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "svc", ScopeNotificationsWrite))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogging_CorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestLogging_PreservesFlusher(t *testing.T) {
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		_, _ = w.Write([]byte("data: x\n\n"))
		f.Flush()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, rec.Flushed)
}

func TestLogging_RecordsAuthenticatedUser(t *testing.T) {
	var slot *string
	h := Logging(logger.NewNop())(Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot, _ = r.Context().Value(userSlotKey).(*string)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-9"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, slot)
	assert.Equal(t, "user-9", *slot)
}

func TestUserRateLimit(t *testing.T) {
	h := UserRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusOK, send("b"))
}

func TestRateLimit_PerIP(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7:5000").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.7:5001").Code)

	limited := send("203.0.113.7:5002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("198.51.100.2:5000").Code)
}

func TestValidation(t *testing.T) {
	id := "0190b4a2-7c3e-7d4e-9f00-0a1b2c3d4e5f"
	bad := "not-a-uuid"

	assert.NoError(t, ValidateUserID(id))
	assert.Error(t, ValidateUserID(bad))
	assert.NoError(t, ValidateNotificationID(id))
	assert.Error(t, ValidateNotificationID(""))
	assert.NoError(t, ValidateApplicationID(nil))
	assert.NoError(t, ValidateApplicationID(&id))
	assert.Error(t, ValidateApplicationID(&bad))

	assert.NoError(t, ValidateNotificationMessage("New application received"))
	assert.Error(t, ValidateNotificationMessage(""))
	assert.Error(t, ValidateNotificationMessage(string(make([]byte, MaxNotificationMessageLength+1))))
	assert.Error(t, ValidateNotificationMessage("\xff\xfe"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/conversations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
