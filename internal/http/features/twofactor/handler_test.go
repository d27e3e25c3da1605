package twofactor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tendant/secure-login/internal/authtest"
	"github.com/tendant/secure-login/internal/http/middleware"
	"github.com/tendant/secure-login/internal/httputil"
)

func withToken(req *http.Request, token string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.SessionTokenKey, token)
	return req.WithContext(ctx)
}

func TestEndpoints_RequireSession(t *testing.T) {
	// Without a session in context, endpoints return 401
	handler := &Handler{
		logger:  nil,
		service: nil,
	}

	rec := httptest.NewRecorder()
	handler.Setup(rec, httptest.NewRequest(http.MethodGet, "/v1/me/2fa/setup", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Setup status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = httptest.NewRecorder()
	handler.Enable(rec, httptest.NewRequest(http.MethodPost, "/v1/me/2fa/enable", bytes.NewBufferString(`{"code":"123456"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Enable status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSetup(t *testing.T) {
	env := authtest.New(t)
	handler := NewHandler(env.Logger, env.Service, httputil.DefaultCookieConfig())
	env.Provision(t, "alice", "correct horse")
	token := env.Login(t, "alice", "correct horse")

	rec := httptest.NewRecorder()
	handler.Setup(rec, withToken(httptest.NewRequest(http.MethodGet, "/v1/me/2fa/setup", nil), token))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp SetupResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Secret) != 32 {
		t.Errorf("secret length = %d, want 32", len(resp.Secret))
	}
	if !strings.HasPrefix(resp.ProvisioningURI, "otpauth://totp/") || !strings.Contains(resp.ProvisioningURI, "secret="+resp.Secret) {
		t.Errorf("provisioning URI = %q", resp.ProvisioningURI)
	}
	if !strings.HasPrefix(resp.QRCode, "data:image/png;base64,") {
		t.Errorf("QR code = %.40q", resp.QRCode)
	}
	if resp.Enabled {
		t.Error("second factor reported enabled before enrollment")
	}
}

func TestEnable(t *testing.T) {
	env := authtest.New(t)
	handler := NewHandler(env.Logger, env.Service, httputil.DefaultCookieConfig())
	account := env.Provision(t, "alice", "correct horse")
	token := env.Login(t, "alice", "correct horse")

	enable := func(code string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/me/2fa/enable", bytes.NewBufferString(`{"code":"`+code+`"}`))
		rec := httptest.NewRecorder()
		handler.Enable(rec, withToken(req, token))
		return rec
	}

	tests := []struct {
		name    string
		code    string
		message string
	}{
		{name: "malformed code", code: "12ab56", message: "invalid code"},
		{name: "wrong code", code: env.WrongCode(t, account), message: "invalid code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := enable(tt.code)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			var resp map[string]string
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp["error"] != tt.message {
				t.Errorf("Error = %q, want %q", resp["error"], tt.message)
			}
		})
	}

	rec := enable(env.Code(t, account))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == httputil.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == token {
		t.Fatalf("enable did not rotate the session cookie: %+v", cookie)
	}
	if _, err := env.Service.Authenticate(t.Context(), token); err == nil {
		t.Error("previous session still valid after enabling the second factor")
	}

	session, err := env.Service.Authenticate(t.Context(), cookie.Value)
	if err != nil {
		t.Fatalf("new session does not authenticate: %v", err)
	}
	if !session.SecondFactorVerified {
		t.Error("new session not marked second factor verified")
	}
}

func TestEnable_AlreadyEnabled(t *testing.T) {
	env := authtest.New(t)
	handler := NewHandler(env.Logger, env.Service, httputil.DefaultCookieConfig())
	account, token := env.EnableSecondFactor(t, "alice", "correct horse")

	req := httptest.NewRequest(http.MethodPost, "/v1/me/2fa/enable", bytes.NewBufferString(`{"code":"`+env.Code(t, account)+`"}`))
	rec := httptest.NewRecorder()
	handler.Enable(rec, withToken(req, token))

	if rec.Code != http.StatusConflict {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusConflict)
	}
}
