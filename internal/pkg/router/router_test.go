package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

type created struct {
	ID string `json:"id"`
}

func (created) StatusCode() int { return http.StatusCreated }

func newTestRouter(t *testing.T, cfg config.Config) (*Router, jwt.JWT) {
	t.Helper()

	j, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(strings.Repeat("s", 64)),
		Issuer:     "test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Clock:      clock.New(),
		UUID:       uid.NewUUID(),
	})
	require.NoError(t, err)

	return NewRouter(Config{
		Config:     cfg,
		UUID:       uid.NewUUID(),
		JWT:        j,
		Instrument: instrument.NewNoop(),
	}), j
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_PublicEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.Public(http.MethodPost, "/things")
	r.POST("/things", func(req *Request) (any, error) {
		var in struct {
			Name string `json:"name"`
		}
		if err := req.DecodeBody(&in); err != nil {
			return nil, err
		}
		return created{ID: in.Name}, nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{"name":"a"}`)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"id": "a"}, body["data"])
}

func TestRouter_DecodeBodyErrors(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.Public(http.MethodPost, "/things")
	r.POST("/things", func(req *Request) (any, error) {
		var in struct {
			Name string `json:"name"`
		}
		return nil, req.DecodeBody(&in)
	})

	for _, body := range []string{`{"unknown":1}`, `{"name":"a"}{"name":"b"}`, `not json`} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRouter_DecodeBodyMessages(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.Public(http.MethodPost, "/things")
	r.POST("/things", func(req *Request) (any, error) {
		var in struct {
			Count int `json:"count"`
		}
		return nil, req.DecodeBody(&in)
	})

	tests := []struct {
		body string
		want string
	}{
		{body: "", want: "Request body is required"},
		{body: `{"count":`, want: "Request body is not valid JSON"},
		{body: `{"count":"many"}`, want: `Field "count" has the wrong type`},
	}
	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.body)
		assert.Equal(t, tt.want, decode(t, rec)["message"], tt.body)
	}
}

func TestRouter_EncodeError(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.Public(http.MethodGet, "/business")
	r.Public(http.MethodGet, "/plain")
	r.GET("/business", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("Invalid OTP", goerror.CodeInvalidInput, goerror.WithReason("invalid_otp"))
	})
	r.GET("/plain", func(*Request) (any, error) {
		return nil, errors.New("leaked detail")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/business", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "invalid_otp", body["code"])
	assert.Equal(t, "Invalid OTP", body["message"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "leaked detail")
}

func TestRouter_Authentication(t *testing.T) {
	r, j := newTestRouter(t, nil)
	r.GET("/me", func(req *Request) (any, error) {
		return jwt.GetAuth(req.Context()).Username, nil
	})

	access, err := j.Issue(jwt.KindAccess, 1, "alice")
	require.NoError(t, err)
	refresh, err := j.Issue(jwt.KindRefresh, 1, "alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "malformed", header: "Token abc", want: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + refresh, want: http.StatusUnauthorized},
		{name: "access token", header: "Bearer " + access, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_Recover(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.Public(http.MethodGet, "/panic")
	r.GET("/panic", func(*Request) (any, error) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_Maintenance(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: \"/down\"\n"))
	require.NoError(t, err)

	r, _ := newTestRouter(t, cfg)
	r.Public(http.MethodGet, "/down")
	r.GET("/down", func(*Request) (any, error) { return "up", nil })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCorrelationID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "  rid-1 ")
	assert.Equal(t, "rid-1", incomingCorrelationID(req))

	req.Header.Set(HeaderCorrelationID, strings.Repeat("a", 200))
	assert.Len(t, incomingCorrelationID(req), maxCorrelationIDLen)
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", realIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", realIP(req))
}
